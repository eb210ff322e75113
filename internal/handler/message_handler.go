package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/dengonban/internal/middleware"
	"github.com/hitoshi/dengonban/internal/model"
)

// MessageServiceInterface は伝言ハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	// Create は伝言を作成し、MESSAGE_CREATE監査エントリを記録する。
	Create(ctx context.Context, userID, subject, body, sourceAddr string) (*model.Message, error)
	// List は投稿者情報付きの伝言一覧を新しい順で返す。
	List(ctx context.Context, limit, offset int) ([]model.MessageWithAuthor, error)
	// Delete は投稿者本人の伝言を削除し、MESSAGE_DELETE監査エントリを記録する。
	Delete(ctx context.Context, messageID, userID, sourceAddr string) error
}

// TokenRotator は受理された状態変更リクエストの後にCSRFトークンを再生成する
// インターフェース。session.CSRFGuardの部分集合として定義する。
type TokenRotator interface {
	Rotate(ctx context.Context, sess *model.Session) (string, error)
}

// MessageHandler は伝言管理のHTTPハンドラー。
type MessageHandler struct {
	service MessageServiceInterface
	tokens  TokenRotator
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface, tokens TokenRotator) *MessageHandler {
	return &MessageHandler{
		service: service,
		tokens:  tokens,
	}
}

// createMessageRequest は伝言作成リクエストのボディ。
type createMessageRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// messageResponse は伝言1件のAPIレスポンス。
type messageResponse struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	CreatedAt    string `json:"created_at"`
	AuthorName   string `json:"author_name,omitempty"`
	AuthorAvatar string `json:"author_avatar,omitempty"`
}

// CreateMessage は伝言の作成を処理する。
// 受理後にCSRFトークンを再生成し、新しいトークンをレスポンスに含める。
// POST /api/messages
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	msg, err := h.service.Create(r.Context(), userID, req.Subject, req.Body, clientAddr(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	token := h.rotateToken(r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":    toMessageResponse(msg),
		"csrf_token": token,
	})
}

// ListMessages は伝言一覧を新しい順で返す。
// GET /api/messages?limit=50&offset=0
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 0)
	offset := parseIntQuery(r, "offset", 0)

	messages, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		resp := toMessageResponse(&m.Message)
		resp.AuthorName = m.AuthorName
		resp.AuthorAvatar = m.AuthorAvatar
		responses = append(responses, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": responses,
	})
}

// DeleteMessage は投稿者本人による伝言の削除を処理する。
// 受理後にCSRFトークンを再生成し、新しいトークンをレスポンスに含める。
// DELETE /api/messages/{id}
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	messageID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), messageID, userID, clientAddr(r)); err != nil {
		handleServiceError(w, err)
		return
	}

	token := h.rotateToken(r)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"csrf_token": token,
	})
}

// rotateToken は受理されたリクエストの後にCSRFトークンを再生成する。
// 失敗してもリクエスト自体は成立させ、ログのみに記録する。
func (h *MessageHandler) rotateToken(r *http.Request) string {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		return ""
	}

	token, err := h.tokens.Rotate(r.Context(), sess)
	if err != nil {
		slog.Error("failed to rotate CSRF token",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return token
}

// toMessageResponse はモデルをAPIレスポンスに変換する。
func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		Subject:   m.Subject,
		Body:      m.Body,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

// parseIntQuery はクエリパラメータを整数として解析する。不正な値はデフォルト値を返す。
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return defaultValue
	}
	return v
}
