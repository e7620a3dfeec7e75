// Package post は投稿の作成・削除・一覧のドメインロジックを提供する。
// 認可の判断はすべてpolicyパッケージに委ね、Web画面とAPIで同じ結果になるようにする。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/postbook/internal/metrics"
	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/pagination"
	"github.com/hitoshi/postbook/internal/policy"
	"github.com/hitoshi/postbook/internal/repository"
	"github.com/hitoshi/postbook/internal/validation"
)

// CreateInput は投稿作成の入力。所有者は入力ではなく呼び出し元から決まる。
type CreateInput struct {
	Title string `json:"title" validate:"notblank,max=60"`
	Body  string `json:"body" validate:"notblank"`
}

// Page はページネーションされた投稿一覧。
type Page struct {
	Owner   *model.User
	Posts   []*model.Post
	Page    model.Page
	IsOwner bool
}

// Service は投稿管理のサービス層。
type Service struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	metrics  metrics.MetricsCollector
	pageSize int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	mc metrics.MetricsCollector,
	pageSize int,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	return &Service{
		postRepo: postRepo,
		userRepo: userRepo,
		metrics:  mc,
		pageSize: pageSize,
	}
}

// Create は呼び出し元を所有者として投稿を作成する。
// 未認証の場合は入力検証より先にUnauthenticatedエラーを返す。
func (s *Service) Create(ctx context.Context, caller policy.Caller, input CreateInput) (*model.Post, error) {
	if err := policy.CanCreatePost(caller); err != nil {
		return nil, err
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Body = strings.TrimSpace(input.Body)
	if fields := validation.Struct(input); !fields.Empty() {
		return nil, model.NewValidationError(fields)
	}

	post := &model.Post{
		Title:   input.Title,
		Body:    input.Body,
		OwnerID: caller.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	s.metrics.RecordPostCreated()
	slog.Info("post created",
		slog.Int64("post_id", post.ID),
		slog.Int64("owner_id", post.OwnerID),
	)
	return post, nil
}

// Get は指定IDの投稿を返す。存在しない場合はPostNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, postID int64) (*model.Post, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return post, nil
}

// Delete は投稿を削除し、削除した投稿を返す。
// 判定順序: 未認証 → 存在確認 → 所有者確認。
// 同じ投稿への2回目の削除はPostNotFoundになる。
func (s *Service) Delete(ctx context.Context, caller policy.Caller, postID int64) (*model.Post, error) {
	if !caller.IsAuthenticated() {
		return nil, model.NewUnauthenticatedError()
	}

	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}

	if err := policy.CanDeletePost(caller, post); err != nil {
		slog.Warn("post delete denied",
			slog.Int64("post_id", post.ID),
			slog.Int64("caller_id", caller.UserID),
		)
		return nil, err
	}

	deleted, err := s.postRepo.DeleteByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	if !deleted {
		return nil, model.NewPostNotFoundError(postID)
	}

	s.metrics.RecordPostDeleted()
	slog.Info("post deleted",
		slog.Int64("post_id", post.ID),
		slog.Int64("owner_id", post.OwnerID),
	)
	return post, nil
}

// ListByOwner は指定ユーザーの投稿を新しい順にページ単位で返す。
// ユーザーが存在しない場合はUserNotFoundエラーを返す。
func (s *Service) ListByOwner(ctx context.Context, caller policy.Caller, ownerID int64, pageParam string) (*Page, error) {
	owner, err := s.findOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	allowed, isOwner := policy.CanListPosts(caller, ownerID)
	if !allowed {
		return nil, model.NewForbiddenError()
	}

	total, err := s.postRepo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("投稿数の取得に失敗しました: %w", err)
	}

	page := pagination.Resolve(pageParam, total, s.pageSize)
	posts, err := s.postRepo.ListByOwner(ctx, ownerID, page.Offset(), page.Size)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}

	return &Page{Owner: owner, Posts: posts, Page: page, IsOwner: isOwner}, nil
}

// ListAllByOwner は指定ユーザーの投稿を新しい順に全件返す。
func (s *Service) ListAllByOwner(ctx context.Context, caller policy.Caller, ownerID int64) ([]*model.Post, error) {
	if _, err := s.findOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	if allowed, _ := policy.CanListPosts(caller, ownerID); !allowed {
		return nil, model.NewForbiddenError()
	}

	posts, err := s.postRepo.ListByOwner(ctx, ownerID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

func (s *Service) findOwner(ctx context.Context, ownerID int64) (*model.User, error) {
	owner, err := s.userRepo.FindByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if owner == nil {
		return nil, model.NewUserNotFoundError(ownerID)
	}
	return owner, nil
}
