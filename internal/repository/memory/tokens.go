package memory

import (
	"context"

	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/repository"
)

// TokenRepo はインメモリのAPIトークンリポジトリ。
type TokenRepo struct {
	store *Store
}

// GetOrCreate はユーザーの既存トークンを返し、なければkeyで作成する。
func (r *TokenRepo) GetOrCreate(_ context.Context, userID int64, key string) (*model.Token, bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tok := range s.tokens {
		if tok.UserID == userID {
			return &tok, false, nil
		}
	}
	tok := model.Token{Key: key, UserID: userID, CreatedAt: s.now()}
	s.tokens[key] = tok
	return &tok, true, nil
}

// FindByKey はトークン文字列でトークンを取得する。
func (r *TokenRepo) FindByKey(_ context.Context, key string) (*model.Token, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.tokens[key]
	if !ok {
		return nil, nil
	}
	return &tok, nil
}

// Count は発行済みトークン数を返す。
func (r *TokenRepo) Count(_ context.Context) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens), nil
}

var _ repository.TokenRepository = (*TokenRepo)(nil)
