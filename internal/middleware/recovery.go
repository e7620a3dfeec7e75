package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// onPanicで500レスポンスを返すミドルウェアを生成する。
// onPanicがnilの場合はJSONの内部エラーを返す。
func NewRecoveryMiddleware(onPanic http.Handler) func(next http.Handler) http.Handler {
	if onPanic == nil {
		onPanic = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteInternalServerError(w)
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					slog.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("request_id", RequestIDFromContext(r.Context())),
						slog.String("stack", string(debug.Stack())),
					)
					onPanic.ServeHTTP(w, r)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
