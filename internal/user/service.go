// Package user はユーザー登録と一覧のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/postbook/internal/auth"
	"github.com/hitoshi/postbook/internal/metrics"
	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/pagination"
	"github.com/hitoshi/postbook/internal/policy"
	"github.com/hitoshi/postbook/internal/repository"
	"github.com/hitoshi/postbook/internal/validation"
)

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"notblank,max=150"`
	Password string `json:"password" validate:"required"`
}

// Config はユーザーサービスの設定。
type Config struct {
	BcryptCost int
	PageSize   int
}

// Page はページネーションされたユーザー一覧。
type Page struct {
	Users []*model.User
	Page  model.Page
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	metrics  metrics.MetricsCollector
	config   Config
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, mc metrics.MetricsCollector, config Config) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if config.PageSize <= 0 {
		config.PageSize = pagination.DefaultPageSize
	}
	return &Service{
		userRepo: userRepo,
		metrics:  mc,
		config:   config,
	}
}

// Register は新しいユーザーを登録する。
// 入力検証とパスワードポリシーの違反、メールアドレスの重複はバリデーションエラーとして返す。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	user, err := s.create(ctx, input, false)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordUserRegistered()
	slog.Info("user registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// CreateSuperuser は管理者フラグ付きのユーザーを作成する。
func (s *Service) CreateSuperuser(ctx context.Context, input RegisterInput) (*model.User, error) {
	user, err := s.create(ctx, input, true)
	if err != nil {
		return nil, err
	}
	slog.Info("superuser created", slog.Int64("user_id", user.ID))
	return user, nil
}

func (s *Service) create(ctx context.Context, input RegisterInput, admin bool) (*model.User, error) {
	input.Email = auth.NormalizeEmail(input.Email)

	fields := validation.Struct(input)
	if input.Password != "" {
		for _, problem := range auth.ValidatePassword(input.Password, input.Email, input.Name) {
			fields.Add("password", problem)
		}
	}
	if len(fields["email"]) == 0 && input.Email != "" {
		existing, err := s.userRepo.FindByEmail(ctx, input.Email)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if existing != nil {
			fields.Add("email", duplicateEmailMessage)
		}
	}
	if !fields.Empty() {
		return nil, model.NewValidationError(fields)
	}

	hash, err := auth.HashPassword(input.Password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: hash,
		IsStaff:      admin,
		IsSuperuser:  admin,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前確認と作成の間に同じメールアドレスが登録された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			dup := model.FieldErrors{}
			dup.Add("email", duplicateEmailMessage)
			return nil, model.NewValidationError(dup)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return user, nil
}

const duplicateEmailMessage = "このメールアドレスは既に登録されています。"

// List はユーザー一覧を新しい順にページ単位で返す。
// pageParamが不正・範囲外の場合はpagination.Resolveの規則で補正する。
func (s *Service) List(ctx context.Context, caller policy.Caller, pageParam string) (*Page, error) {
	if !policy.CanListUsers(caller) {
		return nil, model.NewForbiddenError()
	}

	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー数の取得に失敗しました: %w", err)
	}

	page := pagination.Resolve(pageParam, total, s.config.PageSize)
	users, err := s.userRepo.List(ctx, page.Offset(), page.Size)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return &Page{Users: users, Page: page}, nil
}

// ListAll はユーザー一覧を新しい順に全件返す。
func (s *Service) ListAll(ctx context.Context, caller policy.Caller) ([]*model.User, error) {
	if !policy.CanListUsers(caller) {
		return nil, model.NewForbiddenError()
	}

	users, err := s.userRepo.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Get は指定IDのユーザーを返す。存在しない場合はUserNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}
