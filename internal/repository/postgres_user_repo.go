package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/dengonban/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findBy(ctx, `WHERE id = $1`, id)
}

// FindByGoogleID はGoogle側の識別子でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.findBy(ctx, `WHERE google_id = $1`, googleID)
}

func (r *PostgresUserRepo) findBy(ctx context.Context, where string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, google_id, email, name, avatar, created_at, last_login_at
		 FROM users `+where,
		arg,
	).Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.Avatar, &user.CreatedAt, &user.LastLoginAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// Reconcile は外部プロフィールをローカルのユーザーレコードに統合する。
// google_idカラムのUNIQUE制約を前提とした単一文のUPSERTとして実行するため、
// 同一google_idの同時ログインが重複レコードを生むことはない。
// 既存レコードのid・email・google_id・created_atは変更しない。
func (r *PostgresUserRepo) Reconcile(ctx context.Context, profile *model.ExternalProfile) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, google_id, email, name, avatar, created_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (google_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     avatar = EXCLUDED.avatar,
		     last_login_at = now()
		 RETURNING id, google_id, email, name, avatar, created_at, last_login_at`,
		uuid.New().String(), profile.GoogleID, profile.Email, profile.Name, profile.Avatar,
	).Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.Avatar, &user.CreatedAt, &user.LastLoginAt)

	if err != nil {
		// emailのUNIQUE制約違反（別google_idで同一email）もここに含まれる
		return nil, fmt.Errorf("failed to reconcile user: %w", err)
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
