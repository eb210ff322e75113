package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/dengonban/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Create はメッセージを作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, message *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, subject, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		message.ID, message.UserID, message.Subject, message.Body, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListWithAuthor はメッセージ一覧を投稿者情報と結合して取得する。
// created_at降順（同時刻はid降順）でlimit件、offset件スキップして返す。
func (r *PostgresMessageRepo) ListWithAuthor(ctx context.Context, limit, offset int) ([]model.MessageWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.user_id, m.subject, m.body, m.created_at,
		        u.name, u.email, u.avatar
		 FROM messages m
		 JOIN users u ON m.user_id = u.id
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.MessageWithAuthor
	for rows.Next() {
		var m model.MessageWithAuthor
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Subject, &m.Body, &m.CreatedAt,
			&m.AuthorName, &m.AuthorEmail, &m.AuthorAvatar,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	return messages, nil
}

// DeleteByIDAndUser は指定ユーザーが所有するメッセージを削除する。
// 実際に削除された場合はtrueを返す。
func (r *PostgresMessageRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
