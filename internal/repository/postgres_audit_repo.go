package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/dengonban/internal/model"
)

// PostgresAuditLogRepo はPostgreSQLを使用した監査ログリポジトリ。
// INSERTとSELECTのみを発行し、UPDATE・DELETEは一切行わない。
type PostgresAuditLogRepo struct {
	db *sql.DB
}

// NewPostgresAuditLogRepo はPostgresAuditLogRepoを生成する。
func NewPostgresAuditLogRepo(db *sql.DB) *PostgresAuditLogRepo {
	return &PostgresAuditLogRepo{db: db}
}

// Insert は監査エントリを1件追記する。
// created_atはデータベース側のnow()で付与し、挿入結果をentryに反映する。
// 同一トランザクション内の挿入順でタイムスタンプは単調非減少となる。
func (r *PostgresAuditLogRepo) Insert(ctx context.Context, entry *model.AuditEntry) error {
	var userID sql.NullString
	if entry.UserID != nil {
		userID = sql.NullString{String: *entry.UserID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO audit_log (user_id, action, detail, ip_address, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, now())
		 RETURNING id, created_at`,
		userID, string(entry.Action), entry.Detail, entry.IPAddress,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListRecent は監査エントリを操作ユーザー情報と結合し、
// created_at降順（同時刻はid降順）でlimit件取得する。
// 操作ユーザーが存在しないエントリのActorName/ActorEmailは空文字列となる。
func (r *PostgresAuditLogRepo) ListRecent(ctx context.Context, limit int) ([]model.AuditEntryWithActor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.action, COALESCE(a.detail, ''), a.ip_address, a.created_at,
		        COALESCE(u.name, ''), COALESCE(u.email, '')
		 FROM audit_log a
		 LEFT JOIN users u ON a.user_id = u.id
		 ORDER BY a.created_at DESC, a.id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntryWithActor
	for rows.Next() {
		var e model.AuditEntryWithActor
		var userID sql.NullString
		var action string
		if err := rows.Scan(
			&e.ID, &userID, &action, &e.Detail, &e.IPAddress, &e.CreatedAt,
			&e.ActorName, &e.ActorEmail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		if userID.Valid {
			e.UserID = &userID.String
		}
		e.Action = model.AuditAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}

	return entries, nil
}

// compile-time interface check
var _ AuditLogRepository = (*PostgresAuditLogRepo)(nil)
