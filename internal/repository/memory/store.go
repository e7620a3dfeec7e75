// Package memory はテストとローカル開発向けのインメモリリポジトリ実装を提供する。
package memory

import (
	"sync"
	"time"

	"github.com/hitoshi/postbook/internal/model"
)

// Store は全リポジトリが共有するインメモリのデータストア。
// PostgreSQL実装と同様に、IDは1からの連番で採番される。
type Store struct {
	mu sync.RWMutex

	users      map[int64]model.User
	posts      map[int64]model.Post
	sessions   map[string]model.Session
	tokens     map[string]model.Token
	nextUserID int64
	nextPostID int64

	now func() time.Time
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]model.User),
		posts:    make(map[int64]model.Post),
		sessions: make(map[string]model.Session),
		tokens:   make(map[string]model.Token),
		now:      time.Now,
	}
}

// SetClock はテスト用に現在時刻の取得関数を差し替える。
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Users はStoreを利用するユーザーリポジトリを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{store: s} }

// Posts はStoreを利用する投稿リポジトリを返す。
func (s *Store) Posts() *PostRepo { return &PostRepo{store: s} }

// Sessions はStoreを利用するセッションリポジトリを返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{store: s} }

// Tokens はStoreを利用するトークンリポジトリを返す。
func (s *Store) Tokens() *TokenRepo { return &TokenRepo{store: s} }

// window はID降順に並んだスライスからoffset/limitの範囲を切り出す。
// limitが0以下の場合はoffset以降の全件を返す。
func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
