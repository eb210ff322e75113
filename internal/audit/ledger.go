// Package audit は追記専用の監査ログ（Audit Ledger）を提供する。
//
// 監査エントリは状態変更操作が成功した場合にのみ副作用として記録する。
// 失敗した試行や投機的な記録は行わない。一度書き込まれたエントリは
// 更新も削除もされない。
package audit

import (
	"context"
	"log/slog"

	"github.com/hitoshi/dengonban/internal/model"
	"github.com/hitoshi/dengonban/internal/repository"
)

// WriteRecorder は監査書き込みのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type WriteRecorder interface {
	RecordAuditWrite(action string)
	RecordAuditWriteFailure()
}

// nopRecorder はメトリクス未設定時のWriteRecorder。
type nopRecorder struct{}

func (nopRecorder) RecordAuditWrite(string) {}
func (nopRecorder) RecordAuditWriteFailure() {}

// Ledger は監査ログの記録・参照サービス。
type Ledger struct {
	repo     repository.AuditLogRepository
	recorder WriteRecorder
	maxLimit int
}

// NewLedger はLedgerを生成する。
// maxLimitはRecentで取得できる最大件数。recorderはnilを許容する。
func NewLedger(repo repository.AuditLogRepository, recorder WriteRecorder, maxLimit int) *Ledger {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Ledger{
		repo:     repo,
		recorder: recorder,
		maxLimit: maxLimit,
	}
}

// Record は監査エントリを1件追記する。
// actorIDがnilのエントリはシステムレベルの操作として記録される。
// タイムスタンプは書き込み時にデータベース側で付与される。
// 書き込み失敗は握りつぶさずPERSISTENCE_ERRORとして呼び出し側に返す。
// 元となった業務操作をロールバックするかどうかは呼び出し側が決める。
func (l *Ledger) Record(ctx context.Context, actorID *string, action model.AuditAction, detail, sourceAddr string) error {
	entry := &model.AuditEntry{
		UserID:    actorID,
		Action:    action,
		Detail:    detail,
		IPAddress: sourceAddr,
	}

	if err := l.repo.Insert(ctx, entry); err != nil {
		l.recorder.RecordAuditWriteFailure()
		slog.Error("failed to write audit entry",
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
		return model.NewPersistenceError()
	}

	l.recorder.RecordAuditWrite(string(action))
	return nil
}

// Recent は監査エントリをcreated_at降順で最大limit件取得する。
// limitが0以下またはmaxLimit超過の場合はmaxLimitに丸める。
// 操作ユーザーが存在しないエントリのActorNameは"System"とする。
func (l *Ledger) Recent(ctx context.Context, limit int) ([]model.AuditEntryWithActor, error) {
	if limit <= 0 || limit > l.maxLimit {
		limit = l.maxLimit
	}

	entries, err := l.repo.ListRecent(ctx, limit)
	if err != nil {
		slog.Error("failed to list audit entries", slog.String("error", err.Error()))
		return nil, model.NewPersistenceError()
	}

	for i := range entries {
		if entries[i].ActorName == "" {
			entries[i].ActorName = "System"
		}
	}

	return entries, nil
}
