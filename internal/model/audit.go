package model

import "time"

// AuditAction は監査ログの操作種別を表す。
type AuditAction string

// 定義済みの操作種別。新しい種別の追加は可能だが、既存の値は変更しない。
const (
	AuditActionLogin         AuditAction = "LOGIN"
	AuditActionLogout        AuditAction = "LOGOUT"
	AuditActionMessageCreate AuditAction = "MESSAGE_CREATE"
	AuditActionMessageDelete AuditAction = "MESSAGE_DELETE"
)

// AuditEntry はセキュリティ上意味のある操作1件の不変の記録を表す。
// 一度書き込まれたエントリは更新も削除もされない。
// UserIDがnilのエントリはシステムレベルの操作を表す。
// CreatedAtは書き込み時にサーバー側で付与される。
type AuditEntry struct {
	ID        int64
	UserID    *string
	Action    AuditAction
	Detail    string
	IPAddress string
	CreatedAt time.Time
}

// AuditEntryWithActor は監査エントリを操作ユーザーの表示名・メールアドレスと
// 結合した構造体。ユーザーが存在しない（システムレベルまたは退会済み）場合、
// ActorNameは"System"となる。
type AuditEntryWithActor struct {
	AuditEntry
	ActorName  string
	ActorEmail string
}
