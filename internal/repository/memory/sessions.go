package memory

import (
	"context"

	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/repository"
)

// SessionRepo はインメモリのセッションリポジトリ。
type SessionRepo struct {
	store *Store
}

// Create はセッションを作成する。
func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

// FindByID は有効期限内のセッションを取得する。
func (r *SessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || !sess.ExpiresAt.After(s.now()) {
		return nil, nil
	}
	return &sess, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *SessionRepo) DeleteByID(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *SessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

var _ repository.SessionRepository = (*SessionRepo)(nil)
