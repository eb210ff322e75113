// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/dengonban/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByGoogleID はGoogle側の識別子でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// Reconcile は外部プロフィールをローカルのユーザーレコードに統合する。
	// google_idが未登録なら新規作成、登録済みならname・avatar・last_login_atを
	// 更新して既存レコードを返す。同一google_idの同時ログインで重複レコードが
	// 生じないよう、単一文のUPSERTとして実行する。
	Reconcile(ctx context.Context, profile *model.ExternalProfile) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Update はセッションのuser_idとDataマップを保存する。
	Update(ctx context.Context, session *model.Session) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Create はメッセージを作成する。
	Create(ctx context.Context, message *model.Message) error

	// ListWithAuthor はメッセージ一覧を投稿者情報と結合して取得する。
	// created_at降順でlimit件、offset件スキップして返す。
	ListWithAuthor(ctx context.Context, limit, offset int) ([]model.MessageWithAuthor, error)

	// DeleteByIDAndUser は指定ユーザーが所有するメッセージを削除する。
	// 実際に削除された場合はtrueを返す。他ユーザーのメッセージは削除しない。
	DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error)
}

// AuditLogRepository は監査ログの永続化インターフェース。
// エントリは追記のみで、更新・削除の操作は提供しない。
type AuditLogRepository interface {
	// Insert は監査エントリを1件追記する。
	// タイムスタンプはデータベース側でnow()により付与され、
	// 挿入されたエントリに反映される。
	Insert(ctx context.Context, entry *model.AuditEntry) error

	// ListRecent は監査エントリを操作ユーザー情報と結合し、
	// created_at降順（同時刻はid降順）でlimit件取得する。
	ListRecent(ctx context.Context, limit int) ([]model.AuditEntryWithActor, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
