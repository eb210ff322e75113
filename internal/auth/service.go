// Package auth はGoogle OAuthによるログインハンドシェイクを提供する。
//
// 1回のログイン試行の状態遷移:
//
//	Idle -> AwaitingCallback（pending state設定）
//	     -> Verified -> Exchanged -> Reconciled -> LoggedIn
//	      | Rejected（state不一致）
//	      | Failed（プロバイダーエラー）
//
// 失敗したハンドシェイクにリトライはない。いずれの終端状態からも
// BeginLoginでIdleに再入できる。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/hitoshi/dengonban/internal/model"
	"github.com/hitoshi/dengonban/internal/repository"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*model.ExternalProfile, error)
}

// PrincipalEstablisher はセッションへのプリンシパル設定インターフェース。
// session.Guardの部分集合として定義する。
type PrincipalEstablisher interface {
	Establish(ctx context.Context, sess *model.Session, user *model.User) error
}

// AuditRecorder は監査エントリ書き込みのインターフェース。
// audit.Ledgerの部分集合として定義する。
type AuditRecorder interface {
	Record(ctx context.Context, actorID *string, action model.AuditAction, detail, sourceAddr string) error
}

// LoginRecorder はログイン結果のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type LoginRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
}

// nopLoginRecorder はメトリクス未設定時のLoginRecorder。
type nopLoginRecorder struct{}

func (nopLoginRecorder) RecordLoginSuccess()       {}
func (nopLoginRecorder) RecordLoginFailure(string) {}

// Service はOAuthハンドシェイクのオーケストレーター。
// state検証、コード交換、ユーザー照合、プリンシパル確立、監査記録を束ねる。
type Service struct {
	oauth    OAuthProvider
	users    repository.UserRepository
	sessions repository.SessionRepository
	guard    PrincipalEstablisher
	ledger   AuditRecorder
	recorder LoginRecorder
}

// NewService はServiceを生成する。recorderはnilを許容する。
func NewService(
	oauth OAuthProvider,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	guard PrincipalEstablisher,
	ledger AuditRecorder,
	recorder LoginRecorder,
) *Service {
	if recorder == nil {
		recorder = nopLoginRecorder{}
	}
	return &Service{
		oauth:    oauth,
		users:    users,
		sessions: sessions,
		guard:    guard,
		ledger:   ledger,
		recorder: recorder,
	}
}

// BeginLogin はOAuthハンドシェイクを開始する。
// 新しいCSRF対策state値を生成してセッションのpendingスロットに保存し
// （未消費の旧値があれば上書き）、state付きの認証URLを返す。
func (s *Service) BeginLogin(ctx context.Context, sess *model.Session) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}

	if sess.Data == nil {
		sess.Data = map[string]string{}
	}
	sess.Data[model.SessionKeyOAuthState] = state

	if err := s.sessions.Update(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}

	return s.oauth.GetLoginURL(state), nil
}

// CompleteLogin はOAuthコールバックを処理する。
//
//  1. returnedStateをセッションのpendingスロットと照合する。pendingスロットは
//     結果によらずここで1回だけ消費（クリア）される。不一致（未設定・空・不一致）
//     の場合はAUTH_STATE_MISMATCHを返し、プロバイダーへの通信は行わない。
//  2. 一致した場合のみ認可コードをプロフィールに交換する。交換失敗は
//     AUTH_PROVIDER_ERRORとなり、ユーザーストアにも監査ログにも書き込まない。
//  3. 成功したプロフィールをローカルユーザーに照合（create-or-update）し、
//     セッションのプリンシパルとして確立し、LOGIN監査エントリを記録する。
//
// 失敗したハンドシェイクはBeginLoginからやり直す必要がある。
func (s *Service) CompleteLogin(ctx context.Context, sess *model.Session, code, returnedState, sourceAddr string) (*model.User, error) {
	// 1. state検証。pendingスロットは成否にかかわらずここで消費する。
	pending := sess.Data[model.SessionKeyOAuthState]
	delete(sess.Data, model.SessionKeyOAuthState)
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to clear oauth state: %w", err)
	}

	if pending == "" || returnedState == "" || pending != returnedState {
		slog.Warn("oauth state mismatch")
		s.recorder.RecordLoginFailure("state_mismatch")
		return nil, model.NewStateMismatchError()
	}

	// 2. コード交換とプロフィール取得
	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		slog.Error("oauth code exchange failed", slog.String("error", err.Error()))
		s.recorder.RecordLoginFailure("provider_error")
		return nil, model.NewProviderError()
	}

	// 3. ユーザー照合
	user, err := s.users.Reconcile(ctx, profile)
	if err != nil {
		slog.Error("user reconciliation failed", slog.String("error", err.Error()))
		s.recorder.RecordLoginFailure("persistence_error")
		return nil, model.NewPersistenceError()
	}

	// 4. プリンシパル確立
	if err := s.guard.Establish(ctx, sess, user); err != nil {
		slog.Error("failed to establish principal", slog.String("error", err.Error()))
		s.recorder.RecordLoginFailure("persistence_error")
		return nil, model.NewPersistenceError()
	}

	// 5. LOGIN監査エントリ。書き込み失敗はログに記録するがログインは成立させる。
	userID := user.ID
	if err := s.ledger.Record(ctx, &userID, model.AuditActionLogin, "User logged in via Google OAuth", sourceAddr); err != nil {
		slog.Error("login audit write failed", slog.String("error", err.Error()))
	}

	s.recorder.RecordLoginSuccess()
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
