package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/postbook/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Handler       *Handler
	Authenticator middleware.SessionAuthenticator
	CSRF          middleware.CSRFConfig
	// AuthRateLimiter はユーザー登録・ログインのPOSTに適用する。nilの場合は制限しない。
	AuthRateLimiter *middleware.RateLimiter
}

// NewRouter はWeb画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	StripSlashes → SecurityHeaders → Recovery → SessionAuth → CSRF
//
// ログインが必要なページは未認証の場合ログイン画面へリダイレクトする。
func NewRouter(deps *RouterDeps) http.Handler {
	h := deps.Handler
	r := chi.NewRouter()

	csrf := deps.CSRF
	csrf.OnFailure = h.ErrorPage(http.StatusForbidden)

	r.Use(chimw.StripSlashes)
	r.Use(middleware.NewSecurityHeadersMiddleware(true))
	r.Use(middleware.NewRecoveryMiddleware(h.ErrorPage(http.StatusInternalServerError)))
	r.Use(middleware.NewSessionAuthMiddleware(deps.Authenticator))
	r.Use(middleware.NewCSRFMiddleware(csrf))

	r.NotFound(h.ErrorPage(http.StatusNotFound))
	r.MethodNotAllowed(h.ErrorPage(http.StatusMethodNotAllowed))

	limited := func(fn http.HandlerFunc) http.Handler {
		if deps.AuthRateLimiter == nil {
			return fn
		}
		return deps.AuthRateLimiter.Middleware(h.ErrorPage(http.StatusTooManyRequests))(fn)
	}

	r.Get("/", h.UserList)
	r.Get("/users/{id}/posts", h.UserPosts)

	r.Get("/auth/signup", h.SignupForm)
	r.Method(http.MethodPost, "/auth/signup", limited(h.Signup))
	r.Get("/auth/login", h.LoginForm)
	r.Method(http.MethodPost, "/auth/login", limited(h.Login))
	r.Post("/auth/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireLoginMiddleware(loginPath))

		r.Get("/posts/new", h.NewPostForm)
		r.Post("/posts/new", h.CreatePost)
		r.Get("/posts/{id}/delete", h.ConfirmDelete)
		r.Post("/posts/{id}/delete", h.DeletePost)
	})

	r.Get("/403", h.ErrorPage(http.StatusForbidden))
	r.Get("/404", h.ErrorPage(http.StatusNotFound))
	r.Get("/500", h.ErrorPage(http.StatusInternalServerError))

	return r
}
