package model

import "time"

// セッションDataマップのキー。
const (
	// SessionKeyOAuthState は進行中のOAuthハンドシェイクのstate値を保持するキー。
	// ハンドシェイク開始から完了/失敗までの間のみ存在する。
	SessionKeyOAuthState = "oauth_state"
	// SessionKeyCSRFToken はフォーム送信用CSRFトークンを保持するキー。
	SessionKeyCSRFToken = "csrf_token"
)

// Session はユーザーのブラウジングセッションを表す。
// UserIDが空文字列の間は未認証セッションとして扱う。
// Dataはセッションに紐付く小さなキー値マップで、OAuth state値と
// CSRFトークンの保管に使用する。
type Session struct {
	ID        string
	UserID    string
	Data      map[string]string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsAuthenticated は認証済みプリンシパルが設定されているかを返す。
func (s *Session) IsAuthenticated() bool {
	return s.UserID != ""
}
