package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// CSRFCookieName はCSRFトークンを保持するCookieの名前。
	CSRFCookieName = "csrf_token"

	// CSRFFormField はフォームでCSRFトークンを送信する際のフィールド名。
	CSRFFormField = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	csrfCookieMaxAge = 365 * 24 * 60 * 60
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	Secret         string
	CookieSecure   bool
	CookieDomain   string
	TrustedOrigins []string
	// OnFailure は検証失敗時のレスポンスを書き込む。nilの場合はプレーンテキストの403を返す。
	OnFailure http.Handler
}

// NewCSRFMiddleware はWeb画面用のCSRFトークン生成・検証ミドルウェアを返す。
// トークンはSecretで署名した値をCookieに保持し、状態変更メソッドでは
// フォームフィールドまたはヘッダーで同じ値が送られてくることを要求する。
// Originヘッダーがある場合は自ホストか信頼済みオリジンであることも確認する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	onFailure := config.OnFailure
	if onFailure == nil {
		onFailure = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if cookie, err := r.Cookie(CSRFCookieName); err == nil && verifyCSRFToken(config.Secret, cookie.Value) {
				token = cookie.Value
			}

			if isSafeMethod(r.Method) {
				if token == "" {
					var err error
					token, err = generateCSRFToken(config.Secret)
					if err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
						http.Error(w, "internal server error", http.StatusInternalServerError)
						return
					}
					setCSRFCookie(w, token, config)
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenContextKey, token)))
				return
			}

			reason := ""
			switch {
			case !originAllowed(r, config.TrustedOrigins):
				reason = "origin not trusted"
			case token == "":
				reason = "missing cookie token"
			default:
				submitted := r.Header.Get(csrfHeaderName)
				if submitted == "" {
					submitted = r.PostFormValue(CSRFFormField)
				}
				if !hmac.Equal([]byte(submitted), []byte(token)) {
					reason = "token mismatch"
				}
			}

			if reason != "" {
				slog.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				onFailure.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenContextKey, token)))
		})
	}
}

// CSRFTokenFromContext はテンプレートに埋め込むCSRFトークンを取得する。
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// originAllowed はOriginヘッダーが自ホストまたは信頼済みオリジンかを判定する。
// Originヘッダーがない場合は許可する。
func originAllowed(r *http.Request, trusted []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, t := range trusted {
		if strings.EqualFold(strings.TrimRight(t, "/"), origin) {
			return true
		}
	}
	return false
}

func setCSRFCookie(w http.ResponseWriter, token string, config CSRFConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateCSRFToken は乱数部分とその署名を連結したトークンを生成する。
func generateCSRFToken(secret string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(b)
	return nonce + "." + signCSRF(secret, nonce), nil
}

func verifyCSRFToken(secret, token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(signCSRF(secret, nonce)))
}

func signCSRF(secret, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}
