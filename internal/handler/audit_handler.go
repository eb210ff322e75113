package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/dengonban/internal/model"
)

// AuditLedgerInterface は監査ハンドラーが必要とするインターフェース。
// audit.Ledgerの部分集合として定義する。
type AuditLedgerInterface interface {
	Recent(ctx context.Context, limit int) ([]model.AuditEntryWithActor, error)
}

// AuditHandler は監査ログ閲覧のHTTPハンドラー。
type AuditHandler struct {
	ledger AuditLedgerInterface
}

// NewAuditHandler はAuditHandlerを生成する。
func NewAuditHandler(ledger AuditLedgerInterface) *AuditHandler {
	return &AuditHandler{ledger: ledger}
}

// auditEntryResponse は監査エントリ1件のAPIレスポンス。
type auditEntryResponse struct {
	ID         int64  `json:"id"`
	Action     string `json:"action"`
	Detail     string `json:"detail"`
	IPAddress  string `json:"ip_address"`
	ActorName  string `json:"actor_name"`
	ActorEmail string `json:"actor_email,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ListRecent は最近の監査エントリを新しい順で返す。
// GET /api/audit?limit=100
func (h *AuditHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 0)

	entries, err := h.ledger.Recent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, auditEntryResponse{
			ID:         e.ID,
			Action:     string(e.Action),
			Detail:     e.Detail,
			IPAddress:  e.IPAddress,
			ActorName:  e.ActorName,
			ActorEmail: e.ActorEmail,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries": responses,
	})
}
