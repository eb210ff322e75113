package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/hitoshi/dengonban/internal/model"
	"github.com/hitoshi/dengonban/internal/repository"
)

// CSRFGuard はフォーム送信用CSRFトークンの発行・検証サービス。
// トークンはセッションのDataマップに保持し、受理された状態変更送信の
// たびにローテーションする。
type CSRFGuard struct {
	sessions repository.SessionRepository
}

// NewCSRFGuard はCSRFGuardを生成する。
func NewCSRFGuard(sessions repository.SessionRepository) *CSRFGuard {
	return &CSRFGuard{sessions: sessions}
}

// IssueOrReuse はセッションの現在のCSRFトークンを返す。
// 未発行の場合は256ビットの乱数トークンを生成して保存する。
// 明示的にローテーションされるまで同一セッション内では冪等。
func (c *CSRFGuard) IssueOrReuse(ctx context.Context, sess *model.Session) (string, error) {
	if token := sess.Data[model.SessionKeyCSRFToken]; token != "" {
		return token, nil
	}
	return c.rotate(ctx, sess)
}

// Verify は送信されたトークンをセッションの保存値と照合する。
// トークンが空、または保存値と完全一致しない場合はINVALID_CSRF_TOKENを返す。
// 並行するローテーションに対して常に最新の保存値と比較するため、
// セッション行を読み直してから照合する。ローテーション直後の正当な送信が
// 拒否されることはあり得る（呼び出し側が再試行する）が、保存値と一致しない
// トークンが受理されることはない。
func (c *CSRFGuard) Verify(ctx context.Context, sess *model.Session, submitted string) error {
	if submitted == "" {
		return model.NewInvalidTokenError()
	}

	current, err := c.sessions.FindByID(ctx, sess.ID)
	if err != nil {
		return model.NewPersistenceError()
	}
	if current == nil {
		return model.NewInvalidTokenError()
	}

	stored := current.Data[model.SessionKeyCSRFToken]
	if stored == "" || submitted != stored {
		return model.NewInvalidTokenError()
	}

	return nil
}

// Rotate は現在のトークンを破棄して新しいトークンを発行する。
// トークンの使い回しを防ぐため、受理された状態変更送信のたびに呼び出す。
func (c *CSRFGuard) Rotate(ctx context.Context, sess *model.Session) (string, error) {
	return c.rotate(ctx, sess)
}

func (c *CSRFGuard) rotate(ctx context.Context, sess *model.Session) (string, error) {
	token, err := generateCSRFToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	if sess.Data == nil {
		sess.Data = map[string]string{}
	}
	sess.Data[model.SessionKeyCSRFToken] = token

	if err := c.sessions.Update(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to save CSRF token: %w", err)
	}

	return token, nil
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
// 256ビットの乱数をhexエンコードする。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
