// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やワーカーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordAuditWrite(action string)
	RecordAuditWriteFailure()
	RecordMessageCreated()
	RecordMessageDeleted()
	RecordSessionsCleaned(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    prometheus.Counter
	loginFail       *prometheus.CounterVec
	auditWrite      *prometheus.CounterVec
	auditWriteFail  prometheus.Counter
	messagesCreated prometheus.Counter
	messagesDeleted prometheus.Counter
	sessionsCleaned prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dengonban_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dengonban_login_fail_total",
			Help: "失敗理由別のログイン失敗数",
		}, []string{"reason"}),
		auditWrite: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dengonban_audit_write_total",
			Help: "アクション別の監査ログ書き込み数",
		}, []string{"action"}),
		auditWriteFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dengonban_audit_write_fail_total",
			Help: "監査ログ書き込み失敗の合計数",
		}),
		messagesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dengonban_messages_created_total",
			Help: "作成された伝言の合計数",
		}),
		messagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dengonban_messages_deleted_total",
			Help: "削除された伝言の合計数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dengonban_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dengonban_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.auditWrite,
		c.auditWriteFail,
		c.messagesCreated,
		c.messagesDeleted,
		c.sessionsCleaned,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure は失敗理由付きでログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordAuditWrite は監査ログ書き込み成功を記録する。
func (c *Collector) RecordAuditWrite(action string) {
	c.auditWrite.WithLabelValues(action).Inc()
}

// RecordAuditWriteFailure は監査ログ書き込み失敗を記録する。
func (c *Collector) RecordAuditWriteFailure() {
	c.auditWriteFail.Inc()
}

// RecordMessageCreated は伝言の作成を記録する。
func (c *Collector) RecordMessageCreated() {
	c.messagesCreated.Inc()
}

// RecordMessageDeleted は伝言の削除を記録する。
func (c *Collector) RecordMessageDeleted() {
	c.messagesDeleted.Inc()
}

// RecordSessionsCleaned はクリーンアップで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
