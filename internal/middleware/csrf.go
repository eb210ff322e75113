package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/dengonban/internal/model"
)

// CSRFTokenHeader はCSRFトークンを運ぶHTTPヘッダーの名前。
const CSRFTokenHeader = "X-CSRF-Token"

// csrfTokenFormField はフォーム送信時のCSRFトークンフィールド名。
const csrfTokenFormField = "csrf_token"

// TokenVerifier は提出されたCSRFトークンをセッションの保存値と照合する
// インターフェース。session.CSRFGuardの部分集合として定義する。
type TokenVerifier interface {
	Verify(ctx context.Context, sess *model.Session, submitted string) error
}

// NewCSRFMiddleware は状態変更メソッド(POST/PUT/PATCH/DELETE)に対して
// CSRFトークンの検証を行うミドルウェアを返す。
// トークンはX-CSRF-Tokenヘッダーまたはcsrf_tokenフォーム値から取得する。
// 不一致または欠落の場合は403 ForbiddenのINVALID_CSRF_TOKENエラーを返す。
// セッションミドルウェアの後段に配置すること。
func NewCSRFMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutatingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := SessionFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			submitted := r.Header.Get(CSRFTokenHeader)
			if submitted == "" {
				submitted = r.PostFormValue(csrfTokenFormField)
			}

			if err := verifier.Verify(r.Context(), sess, submitted); err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					slog.Warn("CSRF token verification failed",
						slog.String("session_id", sess.ID),
						slog.String("code", apiErr.Code),
					)
					WriteErrorResponse(w, http.StatusForbidden, apiErr)
					return
				}
				slog.Error("failed to verify CSRF token",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isMutatingMethod はリクエストメソッドが状態変更を伴うかを判定する。
func isMutatingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
