package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/dengonban/internal/middleware"
)

// CSRFGuardInterface はルーターが必要とするCSRFトークン操作の集約インターフェース。
type CSRFGuardInterface interface {
	middleware.TokenVerifier
	TokenIssuer
	TokenRotator
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService    AuthServiceInterface
	SessionManager SessionManagerInterface
	AuthConfig     AuthHandlerConfig

	// CSRF
	CSRFGuard CSRFGuardInterface

	// 伝言
	MessageService MessageServiceInterface

	// 監査
	AuditLedger AuditLedgerInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SessionMiddleware → CSRFMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// OAuthフローのルート（/auth/google/*）と/healthはミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionManager, deps.AuthConfig)
	messageHandler := NewMessageHandler(deps.MessageService, deps.CSRFGuard)
	auditHandler := NewAuditHandler(deps.AuditLedger)
	csrfHandler := NewCSRFHandler(deps.CSRFGuard)

	// --- 認証不要のルート ---

	r.Get("/health", handleHealth)

	// OAuthフロー
	r.Route("/auth/google", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFGuard))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// セッション管理
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)

		// CSRFトークン配布
		r.Get("/api/csrf-token", csrfHandler.GetToken)

		// 伝言管理
		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/", messageHandler.ListMessages)
			// POST /api/messages - 伝言投稿（投稿専用レート制限を追加）
			r.With(deps.RateLimiter.PostMiddleware()).Post("/", messageHandler.CreateMessage)
			r.Delete("/{id}", messageHandler.DeleteMessage)
		})

		// 監査ログ閲覧
		r.Get("/api/audit", auditHandler.ListRecent)
	})

	return r
}

// handleHealth はプロセスの生存確認エンドポイント。
// GET /health
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
