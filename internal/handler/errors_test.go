package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/dengonban/internal/model"
)

func TestHandleServiceError_MapsAPIErrorCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unauthenticated", model.NewUnauthenticatedError(), http.StatusUnauthorized, model.ErrCodeUnauthenticated},
		{"invalid csrf token", model.NewInvalidTokenError(), http.StatusForbidden, model.ErrCodeInvalidToken},
		{"state mismatch", model.NewStateMismatchError(), http.StatusBadRequest, model.ErrCodeStateMismatch},
		{"provider error", model.NewProviderError(), http.StatusBadGateway, model.ErrCodeProviderError},
		{"message not found", model.NewMessageNotFoundError("msg-1"), http.StatusNotFound, model.ErrCodeMessageNotFound},
		{"missing fields", model.NewMissingFieldsError(), http.StatusBadRequest, model.ErrCodeMissingFields},
		{"persistence", model.NewPersistenceError(), http.StatusInternalServerError, model.ErrCodePersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			handleServiceError(w, tt.err)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var body apiErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	wrapped := fmt.Errorf("create message: %w", model.NewMessageNotFoundError("msg-1"))

	w := httptest.NewRecorder()
	handleServiceError(w, wrapped)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestHandleServiceError_UnknownError_Returns500(t *testing.T) {
	w := httptest.NewRecorder()

	handleServiceError(w, errors.New("unexpected failure"))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
	// 内部エラーの詳細はレスポンスに露出しないこと
	if body.Message == "unexpected failure" {
		t.Error("error details must not leak into the response")
	}
}
