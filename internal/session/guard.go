// Package session はセッション状態の管理を提供する。
//
// セッションはグローバルに読み書きせず、明示的な*model.Sessionハンドルを
// 各操作に渡す。ハンドルはトランスポート層がCookieから解決し、永続化は
// repository.SessionRepositoryを通して行う。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/dengonban/internal/model"
	"github.com/hitoshi/dengonban/internal/repository"
)

// AuditRecorder は監査エントリ書き込みのインターフェース。
// audit.Ledgerの部分集合として定義する。
type AuditRecorder interface {
	Record(ctx context.Context, actorID *string, action model.AuditAction, detail, sourceAddr string) error
}

// Guard は認証済みセッション状態の管理サービス。
// ログイン必須ゲート、プリンシパルの確立、ログアウトを提供する。
type Guard struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	ledger   AuditRecorder
	maxAge   time.Duration
}

// NewGuard はGuardを生成する。
// maxAgeは新規セッションの有効期間。
func NewGuard(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	ledger AuditRecorder,
	maxAge time.Duration,
) *Guard {
	return &Guard{
		sessions: sessions,
		users:    users,
		ledger:   ledger,
		maxAge:   maxAge,
	}
}

// Start は未認証の新規セッションを作成し永続化する。
func (g *Guard) Start(ctx context.Context) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	sess := &model.Session{
		ID:        id,
		Data:      map[string]string{},
		ExpiresAt: time.Now().Add(g.maxAge),
		CreatedAt: time.Now(),
	}

	if err := g.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

// Find は指定IDの有効なセッションを取得する。期限切れ・未存在の場合はnilを返す。
func (g *Guard) Find(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}
	return g.sessions.FindByID(ctx, id)
}

// RequireUser はセッションの認証済みプリンシパルを返す。
// 未認証の場合はUNAUTHENTICATEDエラーを返す。呼び出し側はこのエラーを
// ログイン画面へのリダイレクトに変換し、エンドユーザーにそのまま
// 露出させてはならない。
func (g *Guard) RequireUser(ctx context.Context, sess *model.Session) (*model.User, error) {
	if sess == nil || !sess.IsAuthenticated() {
		return nil, model.NewUnauthenticatedError()
	}

	user, err := g.users.FindByID(ctx, sess.UserID)
	if err != nil {
		slog.Error("failed to load session user", slog.String("error", err.Error()))
		return nil, model.NewPersistenceError()
	}
	if user == nil {
		// プリンシパルのユーザーレコードが消えている場合は未認証として扱う
		return nil, model.NewUnauthenticatedError()
	}

	return user, nil
}

// IsAuthenticated は認証済みプリンシパルが設定されているかを返す。
// 副作用なし。
func (g *Guard) IsAuthenticated(sess *model.Session) bool {
	return sess != nil && sess.IsAuthenticated()
}

// Establish はセッションに認証済みプリンシパルを設定し永続化する。
// OAuthハンドシェイクの成功後にのみ呼び出される。
func (g *Guard) Establish(ctx context.Context, sess *model.Session, user *model.User) error {
	sess.UserID = user.ID
	if err := g.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("failed to establish session principal: %w", err)
	}
	return nil
}

// Terminate はセッションを破棄する。
// プリンシパルが存在する場合はLOGOUT監査エントリを記録してから、
// セッション状態（プリンシパル・OAuth state・CSRFトークン）をすべて破棄する。
// 破棄後のセッションは再利用できない。以降のリクエストには新規セッションが必要。
// 監査書き込みの失敗はログに記録するが、セッション破棄は中断しない。
func (g *Guard) Terminate(ctx context.Context, sess *model.Session, sourceAddr string) error {
	if sess == nil {
		return nil
	}

	if sess.IsAuthenticated() {
		userID := sess.UserID
		if err := g.ledger.Record(ctx, &userID, model.AuditActionLogout, "User logged out", sourceAddr); err != nil {
			slog.Error("logout audit write failed", slog.String("error", err.Error()))
		}
	}

	if err := g.sessions.DeleteByID(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}

	sess.UserID = ""
	sess.Data = map[string]string{}

	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
