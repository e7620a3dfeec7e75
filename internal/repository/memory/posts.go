package memory

import (
	"context"
	"sort"

	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/repository"
)

// PostRepo はインメモリの投稿リポジトリ。
type PostRepo struct {
	store *Store
}

// Create は投稿を作成する。
func (r *PostRepo) Create(_ context.Context, post *model.Post) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPostID++
	post.ID = s.nextPostID
	post.CreatedAt = s.now()
	s.posts[post.ID] = *post
	return nil
}

// FindByID は指定IDの投稿を取得する。
func (r *PostRepo) FindByID(_ context.Context, id int64) (*model.Post, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListByOwner は指定ユーザーの投稿一覧をID降順で返す。
func (r *PostRepo) ListByOwner(_ context.Context, ownerID int64, offset, limit int) ([]*model.Post, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]*model.Post, 0)
	for _, p := range s.posts {
		if p.OwnerID == ownerID {
			posts = append(posts, &p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return window(posts, offset, limit), nil
}

// CountByOwner は指定ユーザーの投稿数を返す。
func (r *PostRepo) CountByOwner(_ context.Context, ownerID int64) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.posts {
		if p.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

// DeleteByID は指定IDの投稿を削除する。
func (r *PostRepo) DeleteByID(_ context.Context, id int64) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return false, nil
	}
	delete(s.posts, id)
	return true, nil
}

var _ repository.PostRepository = (*PostRepo)(nil)
