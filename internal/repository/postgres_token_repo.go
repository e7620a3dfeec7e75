package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/postbook/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したAPIトークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// GetOrCreate はユーザーの既存トークンを返し、なければkeyで作成する。
// tokens.user_id の一意制約により、同時ログインでもトークンは1つに収束する。
func (r *PostgresTokenRepo) GetOrCreate(ctx context.Context, userID int64, key string) (*model.Token, bool, error) {
	token := &model.Token{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tokens (key, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING
		 RETURNING key, user_id, created_at`,
		key, userID,
	).Scan(&token.Key, &token.UserID, &token.CreatedAt)
	if err == nil {
		return token, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to insert token: %w", err)
	}

	// 既存トークンを返す
	err = r.db.QueryRowContext(ctx,
		`SELECT key, user_id, created_at FROM tokens WHERE user_id = $1`,
		userID,
	).Scan(&token.Key, &token.UserID, &token.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find token by user: %w", err)
	}
	return token, false, nil
}

// FindByKey はトークン文字列でトークンを取得する。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindByKey(ctx context.Context, key string) (*model.Token, error) {
	token := &model.Token{}
	err := r.db.QueryRowContext(ctx,
		`SELECT key, user_id, created_at FROM tokens WHERE key = $1`,
		key,
	).Scan(&token.Key, &token.UserID, &token.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	return token, nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
