package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/dengonban/internal/middleware"
	"github.com/hitoshi/dengonban/internal/model"
)

// mockCSRFGuard はCSRFGuardInterfaceのモック実装。
// セッションのDataマップに保存されたトークンと照合する。
type mockCSRFGuard struct{}

func (m *mockCSRFGuard) Verify(ctx context.Context, sess *model.Session, submitted string) error {
	stored := sess.Data[model.SessionKeyCSRFToken]
	if stored == "" || submitted != stored {
		return model.NewInvalidTokenError()
	}
	return nil
}

func (m *mockCSRFGuard) IssueOrReuse(ctx context.Context, sess *model.Session) (string, error) {
	if token := sess.Data[model.SessionKeyCSRFToken]; token != "" {
		return token, nil
	}
	sess.Data[model.SessionKeyCSRFToken] = "issued-token"
	return "issued-token", nil
}

func (m *mockCSRFGuard) Rotate(ctx context.Context, sess *model.Session) (string, error) {
	sess.Data[model.SessionKeyCSRFToken] = "rotated-token"
	return "rotated-token", nil
}

var _ CSRFGuardInterface = (*mockCSRFGuard)(nil)

// newTestRouterDeps はルーターテスト用の依存一式を生成する。
// セッション "router-session" はユーザー "user-1" で認証済み、
// CSRFトークンは "valid-token"。
func newTestRouterDeps() (*RouterDeps, *middleware.RateLimiter) {
	sess := &model.Session{
		ID:     "router-session",
		UserID: "user-1",
		Data:   map[string]string{model.SessionKeyCSRFToken: "valid-token"},
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	sessions := &mockSessionManager{
		findFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "router-session" {
				return sess, nil
			}
			return nil, nil
		},
		requireUserFn: func(ctx context.Context, s *model.Session) (*model.User, error) {
			if s == nil || !s.IsAuthenticated() {
				return nil, model.NewUnauthenticatedError()
			}
			return &model.User{ID: s.UserID, Email: "user@example.com", Name: "Test User"}, nil
		},
	}

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    200,
		PostRate:        100,
		PostBurst:       200,
		CleanupInterval: 1 * time.Minute,
	})

	deps := &RouterDeps{
		SessionResolver:   sessions,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		AuthService:       &mockAuthService{},
		SessionManager:    sessions,
		AuthConfig:        testAuthConfig(),
		CSRFGuard:         &mockCSRFGuard{},
		MessageService:    &mockMessageService{},
		AuditLedger:       &mockAuditLedger{},
	}
	return deps, rl
}

func TestRouter_HealthEndpoint_NoAuthRequired(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestRouter_LoginEndpoint_NoAuthRequired(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTemporaryRedirect)
	}
}

func TestRouter_CallbackEndpoint_NoAuthRequired(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=c&state=s", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTemporaryRedirect)
	}
}

func TestRouter_ProtectedEndpoints_RequireSession(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	endpoints := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/messages"},
		{http.MethodPost, "/api/messages"},
		{http.MethodDelete, "/api/messages/msg-1"},
		{http.MethodGet, "/api/csrf-token"},
		{http.MethodGet, "/api/audit"},
		{http.MethodGet, "/auth/me"},
		{http.MethodPost, "/auth/logout"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}
		})
	}
}

func TestRouter_ListMessages_WithSession_Returns200(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_CreateMessage_WithValidCSRFToken_Returns201(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"subject": "Hello", "body": "World"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CSRFTokenHeader, "valid-token")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	// 受理後に新しいトークンが返ること
	var body struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.CSRFToken != "rotated-token" {
		t.Errorf("csrf_token = %q, want rotated-token", body.CSRFToken)
	}
}

func TestRouter_CreateMessage_WithoutCSRFToken_Returns403(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"subject": "Hello", "body": "World"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestRouter_DeleteMessage_PassesURLParam(t *testing.T) {
	var gotMessageID string
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	deps.MessageService = &mockMessageService{
		deleteFn: func(ctx context.Context, messageID, userID, sourceAddr string) error {
			gotMessageID = messageID
			return nil
		},
	}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodDelete, "/api/messages/msg-77", nil)
	req.Header.Set(middleware.CSRFTokenHeader, "valid-token")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotMessageID != "msg-77" {
		t.Errorf("messageID = %q, want msg-77", gotMessageID)
	}
}

func TestRouter_GetCSRFToken_WithSession_Returns200(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["csrf_token"] == "" {
		t.Error("expected non-empty csrf_token")
	}
}

func TestRouter_Logout_WithValidCSRFToken_Returns204(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set(middleware.CSRFTokenHeader, "valid-token")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

func TestRouter_AuditEndpoint_WithSession_Returns200(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "router-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_CORSHeadersPresent(t *testing.T) {
	deps, rl := newTestRouterDeps()
	defer rl.Stop()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
	}
}
