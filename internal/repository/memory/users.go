package memory

import (
	"context"
	"sort"

	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/repository"
)

// UserRepo はインメモリのユーザーリポジトリ。
type UserRepo struct {
	store *Store
}

// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = s.now()
	s.users[user.ID] = *user
	return nil
}

// FindByID は指定IDのユーザーを取得する。
func (r *UserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。
func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// List はユーザー一覧をID降順で返す。
func (r *UserRepo) List(_ context.Context, offset, limit int) ([]*model.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return window(users, offset, limit), nil
}

// Count は登録ユーザー数を返す。
func (r *UserRepo) Count(_ context.Context) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

var _ repository.UserRepository = (*UserRepo)(nil)
