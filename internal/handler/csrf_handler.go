package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/dengonban/internal/middleware"
	"github.com/hitoshi/dengonban/internal/model"
)

// TokenIssuer は現在のセッションのCSRFトークンを発行または再利用する
// インターフェース。session.CSRFGuardの部分集合として定義する。
type TokenIssuer interface {
	IssueOrReuse(ctx context.Context, sess *model.Session) (string, error)
}

// CSRFHandler はCSRFトークン配布のHTTPハンドラー。
type CSRFHandler struct {
	tokens TokenIssuer
}

// NewCSRFHandler はCSRFHandlerを生成する。
func NewCSRFHandler(tokens TokenIssuer) *CSRFHandler {
	return &CSRFHandler{tokens: tokens}
}

// GetToken は現在のセッションのCSRFトークンを返す。
// 未発行の場合は新しいトークンを生成する。
// GET /api/csrf-token
func (h *CSRFHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	token, err := h.tokens.IssueOrReuse(r.Context(), sess)
	if err != nil {
		slog.Error("failed to issue CSRF token",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"csrf_token": token,
	})
}
