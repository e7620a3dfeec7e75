// Package auth はパスワード認証、セッション管理、APIトークン発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/postbook/internal/metrics"
	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/policy"
	"github.com/hitoshi/postbook/internal/repository"
	"github.com/hitoshi/postbook/internal/validation"
)

// Authenticator は生の認証情報を呼び出し元（Caller）に解決する。
// 解決できない場合はUnauthenticatedエラーを返す。
type Authenticator interface {
	AuthenticateSession(ctx context.Context, sessionID string) (policy.Caller, error)
	AuthenticateToken(ctx context.Context, key string) (policy.Caller, error)
}

// Credentials はログイン時の入力。
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokenRepo   repository.TokenRepository
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokenRepo repository.TokenRepository,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokenRepo:   tokenRepo,
		metrics:     mc,
		config:      config,
		now:         time.Now,
	}
}

// 存在しないユーザーでもbcrypt比較を行い、応答時間でユーザーの有無を推測されにくくする。
var dummyHash = mustHash("postbook-dummy-password")

func mustHash(password string) string {
	hash, err := HashPassword(password, bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
}

// verifyCredentials は入力を検証し、認証に成功したユーザーを返す。
func (s *Service) verifyCredentials(ctx context.Context, creds Credentials) (*model.User, error) {
	if fields := validation.Struct(creds); !fields.Empty() {
		return nil, model.NewValidationError(fields)
	}

	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(creds.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		CheckPassword(dummyHash, creds.Password)
		return nil, invalidCredentialsError()
	}
	if !CheckPassword(user.PasswordHash, creds.Password) {
		return nil, invalidCredentialsError()
	}
	return user, nil
}

func invalidCredentialsError() *model.APIError {
	fields := model.FieldErrors{}
	fields.Add(model.NonFieldErrorsKey, "メールアドレスまたはパスワードが正しくありません。")
	return model.NewValidationError(fields)
}

// Login はメールアドレスとパスワードで認証し、新しいWebセッションを発行する。
func (s *Service) Login(ctx context.Context, creds Credentials) (*model.Session, error) {
	user, err := s.verifyCredentials(ctx, creds)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return session, nil
}

// Logout はセッションを破棄する。セッションIDが空の場合は何もしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// ObtainToken は認証に成功したユーザーのAPIトークンを返す。
// 既存トークンがあればそれを返し、なければ新規に発行する。
func (s *Service) ObtainToken(ctx context.Context, creds Credentials) (*model.Token, error) {
	user, err := s.verifyCredentials(ctx, creds)
	if err != nil {
		return nil, err
	}

	key, err := generateKey(20)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	token, created, err := s.tokenRepo.GetOrCreate(ctx, user.ID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain token: %w", err)
	}
	if created {
		s.metrics.RecordTokenIssued()
		slog.Info("api token issued", slog.Int64("user_id", user.ID))
	}
	return token, nil
}

// AuthenticateSession はセッションIDを呼び出し元に解決する。
func (s *Service) AuthenticateSession(ctx context.Context, sessionID string) (policy.Caller, error) {
	if sessionID == "" {
		return policy.Anonymous, model.NewUnauthenticatedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return policy.Anonymous, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return policy.Anonymous, model.NewUnauthenticatedError()
	}
	return policy.AuthenticatedAs(session.UserID), nil
}

// AuthenticateToken はAPIトークンを呼び出し元に解決する。
func (s *Service) AuthenticateToken(ctx context.Context, key string) (policy.Caller, error) {
	if key == "" {
		return policy.Anonymous, model.NewInvalidTokenError()
	}

	token, err := s.tokenRepo.FindByKey(ctx, key)
	if err != nil {
		return policy.Anonymous, fmt.Errorf("failed to find token: %w", err)
	}
	if token == nil {
		return policy.Anonymous, model.NewInvalidTokenError()
	}
	return policy.AuthenticatedAs(token.UserID), nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID int64) (*model.Session, error) {
	sessionID, err := generateKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateKey は暗号的に安全なnバイトの乱数を16進文字列で返す。
func generateKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NormalizeEmail は前後の空白を除去し、ドメイン部を小文字化する。
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

var _ Authenticator = (*Service)(nil)
