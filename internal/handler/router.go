package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/postbook/internal/metrics"
	"github.com/hitoshi/postbook/internal/middleware"
	"github.com/hitoshi/postbook/internal/model"
)

// APIDeps はNewAPIRouterに必要な依存関係をまとめた構造体。
type APIDeps struct {
	Authenticator     middleware.TokenAuthenticator
	CORSAllowedOrigin string
	BaseURL           string
	// AuthRateLimiter はユーザー登録・トークン発行に適用する。nilの場合は制限しない。
	AuthRateLimiter *middleware.RateLimiter

	UserService  UserServiceInterface
	PostService  PostServiceInterface
	TokenService TokenServiceInterface
}

// NewAPIRouter は/api配下のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → TokenAuth
//
// 未定義のメソッドは405、未定義のパスは404をいずれもJSONで返す。
func NewAPIRouter(deps *APIDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware(false))
	r.Use(middleware.NewTokenAuthMiddleware(deps.Authenticator))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError(r.Method))
	})

	authHandler := NewAuthHandler(deps.UserService, deps.TokenService)
	userHandler := NewUserHandler(deps.UserService, deps.PostService)
	postHandler := NewPostHandler(deps.PostService)

	limited := func(h http.HandlerFunc) http.Handler {
		if deps.AuthRateLimiter == nil {
			return h
		}
		return deps.AuthRateLimiter.Middleware(nil)(h)
	}

	r.Get("/", NewAPIRootHandler(deps.BaseURL))

	r.Method(http.MethodPost, "/auth/signup/", limited(authHandler.Signup))
	r.Method(http.MethodPost, "/auth/login/", limited(authHandler.Login))

	r.Get("/users/", userHandler.ListUsers)
	r.Get("/users/{id}/posts/", userHandler.ListUserPosts)

	r.Post("/posts/", postHandler.CreatePost)
	r.Delete("/posts/{id}/", postHandler.DeletePost)

	return r
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	API *APIDeps
	// Web はWeb画面のハンドラー。/api以外のすべてのパスを受け持つ。
	Web http.Handler

	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
	HealthChecker  HealthChecker
}

// NewRouter はAPIとWeb画面を束ねたルートハンドラーを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Logging → Metrics → Recovery
//
// 各サーフェス固有のミドルウェアはそれぞれのルーターで適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(mc))
	r.Use(middleware.NewRecoveryMiddleware(nil))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Mount("/api", NewAPIRouter(deps.API))
	if deps.Web != nil {
		r.Mount("/", deps.Web)
	}

	return r
}
