package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// プロトコルレベルの失敗（state不一致、CSRFトークン不一致等）は
// 例外ではなく通常の戻り値としてこの型で表現し、呼び出し側が分岐する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, board, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeStateMismatch   = "AUTH_STATE_MISMATCH"
	ErrCodeProviderError   = "AUTH_PROVIDER_ERROR"
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeInvalidToken    = "INVALID_CSRF_TOKEN"
	ErrCodePersistence     = "PERSISTENCE_ERROR"
	ErrCodeMessageNotFound = "MESSAGE_NOT_FOUND"
	ErrCodeMissingFields   = "MISSING_FIELDS"
)

// NewStateMismatchError はOAuth state検証失敗エラーを生成する。
// 偽造されたコールバックまたは期限切れコールバックの再送を表す。
func NewStateMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeStateMismatch,
		Message:  "ログイン処理の検証に失敗しました。",
		Category: "auth",
		Action:   "最初からログインをやり直してください。",
	}
}

// NewProviderError は外部IdPとのトークン交換・プロフィール取得失敗エラーを生成する。
// 詳細はサーバーログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewProviderError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderError,
		Message:  "認証プロバイダーとの通信に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから、最初からログインをやり直してください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
// 呼び出し側はこのエラーをログイン画面へのリダイレクトに変換する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInvalidTokenError はCSRFトークン検証失敗エラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "不正なリクエストです。",
		Category: "validation",
		Action:   "画面を再読み込みしてから再度お試しください。",
	}
}

// NewPersistenceError は永続化層の失敗エラーを生成する。
// 元のエラーの詳細はサーバーログのみに記録する。
func NewPersistenceError() *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  "データの保存処理に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewMessageNotFoundError はメッセージ未検出エラーを生成する。
func NewMessageNotFoundError(messageID string) *APIError {
	return &APIError{
		Code:     ErrCodeMessageNotFound,
		Message:  fmt.Sprintf("指定されたメッセージが見つかりません: %s", messageID),
		Category: "board",
		Action:   "メッセージIDを確認してください。",
	}
}

// NewMissingFieldsError は必須項目未入力エラーを生成する。
func NewMissingFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  "すべての項目を入力してください。",
		Category: "validation",
		Action:   "件名と本文を入力してから送信してください。",
	}
}

// IsErrorCode はerrが指定コードのAPIErrorかどうかを判定する。
func IsErrorCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
