// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleアカウントで認証したサービス利用ユーザーを表す。
// GoogleIDは外部IdP側の不変の識別子で、1ユーザーに一意に対応する。
type User struct {
	ID          string
	GoogleID    string
	Email       string
	Name        string
	Avatar      string
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// ExternalProfile はOAuthプロバイダーから取得したプロフィール情報を表す。
// ユーザー照合（reconcile）の入力としてのみ使用する。
type ExternalProfile struct {
	GoogleID string
	Email    string
	Name     string
	Avatar   string
}
