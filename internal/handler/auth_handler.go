// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/hitoshi/dengonban/internal/middleware"
	"github.com/hitoshi/dengonban/internal/model"
)

const sessionCookieName = middleware.SessionCookieName

// SessionManagerInterface は認証ハンドラーが必要とするセッション管理インターフェース。
// session.Guardの部分集合として定義する。
type SessionManagerInterface interface {
	Start(ctx context.Context) (*model.Session, error)
	Find(ctx context.Context, id string) (*model.Session, error)
	RequireUser(ctx context.Context, sess *model.Session) (*model.User, error)
	Terminate(ctx context.Context, sess *model.Session, sourceAddr string) error
}

// AuthServiceInterface は認証ハンドラーが必要とするOAuthフローインターフェース。
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, sess *model.Session) (string, error)
	CompleteLogin(ctx context.Context, sess *model.Session, code, returnedState, sourceAddr string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionManagerInterface
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionManagerInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		config:   config,
	}
}

// Login はGoogle OAuthフローを開始する。
// 既存セッションがなければ匿名セッションを開始し、state値をセッションに保存して
// プロバイダーの認証URLにリダイレクトする。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess := h.resolveOrStartSession(w, r)
	if sess == nil {
		return
	}

	url, err := h.service.BeginLogin(r.Context(), sess)
	if err != nil {
		slog.Error("failed to begin login", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// state検証・コード交換・ユーザー照合の結果に応じて、フロントエンドに
// 成功またはエラーコード付きでリダイレクトする。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		h.redirectWithError(w, r, "session_missing")
		return
	}

	sess, err := h.sessions.Find(r.Context(), cookie.Value)
	if err != nil || sess == nil {
		slog.Warn("callback without valid session")
		h.redirectWithError(w, r, "session_missing")
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if _, err := h.service.CompleteLogin(r.Context(), sess, code, state, clientAddr(r)); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case model.ErrCodeStateMismatch:
				h.redirectWithError(w, r, "state_mismatch")
			case model.ErrCodeProviderError:
				h.redirectWithError(w, r, "provider_error")
			default:
				h.redirectWithError(w, r, "server_error")
			}
			return
		}
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.redirectWithError(w, r, "server_error")
		return
	}

	// ログイン成立。セッションCookieの有効期間を更新する。
	h.setSessionCookie(w, sess.ID)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// セッションミドルウェアとCSRFミドルウェアの後段に配置すること。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	if err := h.sessions.Terminate(r.Context(), sess, clientAddr(r)); err != nil {
		slog.Error("failed to terminate session", slog.String("error", err.Error()))
		// 破棄に失敗してもCookieはクリアする
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	user, err := h.sessions.RequireUser(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     user.ID,
		"email":  user.Email,
		"name":   user.Name,
		"avatar": user.Avatar,
	})
}

// resolveOrStartSession はCookieのセッションを解決し、無効なら新しい匿名セッションを
// 開始してCookieを設定する。失敗時はエラーレスポンスを書き込みnilを返す。
func (h *AuthHandler) resolveOrStartSession(w http.ResponseWriter, r *http.Request) *model.Session {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if sess, err := h.sessions.Find(r.Context(), cookie.Value); err == nil && sess != nil {
			return sess
		}
	}

	sess, err := h.sessions.Start(r.Context())
	if err != nil {
		slog.Error("failed to start session", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil
	}

	h.setSessionCookie(w, sess.ID)
	return sess
}

// setSessionCookie はHTTP OnlyのセッションCookieを設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectWithError は不透明なエラーコード付きでフロントエンドにリダイレクトする。
// 失敗の詳細はログのみに記録する。
func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.config.BaseURL+"/?login_error="+code, http.StatusTemporaryRedirect)
}

// clientAddr はリクエスト元のIPアドレスを取得する。
// リバースプロキシ経由の場合はX-Forwarded-Forの先頭の値を使用する。
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
