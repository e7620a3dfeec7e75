package middleware

import "net/http"

// webContentSecurityPolicy はWeb画面に適用するCSP。スクリプトは使用しない。
const webContentSecurityPolicy = "default-src 'self'; script-src 'none'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// withCSPがtrueの場合はHTML向けのContent-Security-Policyも付与する。
func NewSecurityHeadersMiddleware(withCSP bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if withCSP {
				w.Header().Set("Content-Security-Policy", webContentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
