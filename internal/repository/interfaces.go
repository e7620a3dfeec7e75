// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/postbook/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("repository: email already registered")

// UserRepository はユーザーデータの永続化インターフェース。
// 一覧の並び順は常にID降順（新しいユーザーが先頭）。
type UserRepository interface {
	// Create はユーザーを作成し、採番されたIDと作成日時をuserに設定する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List はユーザー一覧を返す。limitが0以下の場合は全件を返す。
	List(ctx context.Context, offset, limit int) ([]*model.User, error)

	// Count は登録ユーザー数を返す。
	Count(ctx context.Context) (int, error)
}

// PostRepository は投稿データの永続化インターフェース。
// 一覧の並び順は常にID降順（新しい投稿が先頭）。
type PostRepository interface {
	// Create は投稿を作成し、採番されたIDと作成日時をpostに設定する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Post, error)

	// ListByOwner は指定ユーザーの投稿一覧を返す。limitが0以下の場合は全件を返す。
	ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*model.Post, error)

	// CountByOwner は指定ユーザーの投稿数を返す。
	CountByOwner(ctx context.Context, ownerID int64) (int, error)

	// DeleteByID は指定IDの投稿を削除する。
	// 削除対象が存在しなかった場合はfalseを返す。
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// TokenRepository はAPIトークンの永続化インターフェース。
type TokenRepository interface {
	// GetOrCreate はユーザーの既存トークンを返す。存在しない場合はkeyで新規作成する。
	// createdは新規作成した場合にtrueとなる。
	GetOrCreate(ctx context.Context, userID int64, key string) (token *model.Token, created bool, err error)
	// FindByKey はトークン文字列でトークンを取得する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, key string) (*model.Token, error)
}
