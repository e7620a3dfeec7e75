package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/policy"
)

// SessionCookieName はWebセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// SessionAuthenticator はセッションIDを呼び出し元に解決する。
type SessionAuthenticator interface {
	AuthenticateSession(ctx context.Context, sessionID string) (policy.Caller, error)
}

// TokenAuthenticator はAPIトークンを呼び出し元に解決する。
type TokenAuthenticator interface {
	AuthenticateToken(ctx context.Context, key string) (policy.Caller, error)
}

// NewSessionAuthMiddleware はセッションCookieから呼び出し元を解決するミドルウェアを返す。
// Cookieがない・無効な場合は匿名としてそのまま次に渡す。
func NewSessionAuthMiddleware(authn SessionAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := policy.Anonymous

			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				resolved, err := authn.AuthenticateSession(r.Context(), cookie.Value)
				switch {
				case err == nil:
					caller = resolved
				case model.IsCode(err, model.ErrCodeUnauthenticated):
					// 期限切れ・削除済みのセッションは匿名扱い
				default:
					slog.Error("failed to resolve session",
						slog.String("error", err.Error()),
					)
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
		})
	}
}

// NewTokenAuthMiddleware はAuthorizationヘッダーのトークンから呼び出し元を解決するミドルウェアを返す。
// "Token <key>" と "Bearer <key>" を受け付ける。ヘッダーがない場合は匿名として次に渡し、
// トークンが提示されたのに無効な場合はどのエンドポイントでも401を返す。
func NewTokenAuthMiddleware(authn TokenAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, present := tokenFromHeader(r.Header.Get("Authorization"))
			if !present {
				next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), policy.Anonymous)))
				return
			}

			caller, err := authn.AuthenticateToken(r.Context(), key)
			if err != nil {
				apiErr, ok := model.AsAPIError(err)
				if !ok {
					slog.Error("failed to resolve token", slog.String("error", err.Error()))
					WriteInternalServerError(w)
					return
				}
				w.Header().Set("WWW-Authenticate", "Token")
				WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
		})
	}
}

// tokenFromHeader はAuthorizationヘッダーからトークンを取り出す。
// 対象外のスキームの場合はpresent=falseを返す。
func tokenFromHeader(header string) (key string, present bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found && scheme == "" {
		return "", false
	}
	if !strings.EqualFold(scheme, "Token") && !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// NewRequireLoginMiddleware は未認証のリクエストをログイン画面へリダイレクトするミドルウェアを返す。
// リダイレクト先には元のパスをnextパラメータとして付与する。
func NewRequireLoginMiddleware(loginURL string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CallerFromContext(r.Context()).IsAuthenticated() {
				target := loginURL + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
