package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/postbook/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postColumns = `id, title, body, user_id, created_at`

func scanPost(row rowScanner) (*model.Post, error) {
	post := &model.Post{}
	if err := row.Scan(&post.ID, &post.Title, &post.Body, &post.OwnerID, &post.CreatedAt); err != nil {
		return nil, err
	}
	return post, nil
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (title, body, user_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		post.Title, post.Body, post.OwnerID,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return post, nil
}

// ListByOwner は指定ユーザーの投稿一覧をID降順で返す。
// limitが0以下の場合は全件を返す。
func (r *PostgresPostRepo) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY id DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	posts := make([]*model.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿のスキャンに失敗しました: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// CountByOwner は指定ユーザーの投稿数を返す。
func (r *PostgresPostRepo) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE user_id = $1`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("投稿数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteByID は指定IDの投稿を削除する。
// 同時に削除された場合など、対象が存在しなければfalseを返す。
func (r *PostgresPostRepo) DeleteByID(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
