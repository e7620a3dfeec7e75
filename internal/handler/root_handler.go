package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// apiRootResponse はAPIルートで返すエンドポイント一覧。
type apiRootResponse struct {
	Users  string `json:"users"`
	Posts  string `json:"posts"`
	Signup string `json:"signup"`
	Login  string `json:"login"`
}

// NewAPIRootHandler は主要エンドポイントの絶対URLを返すハンドラーを生成する。
// GET /api/
func NewAPIRootHandler(baseURL string) http.HandlerFunc {
	base := strings.TrimRight(baseURL, "/") + "/api"
	resp := apiRootResponse{
		Users:  base + "/users/",
		Posts:  base + "/posts/",
		Signup: base + "/auth/signup/",
		Login:  base + "/auth/login/",
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, resp)
	}
}

// HealthChecker はデータベースの疎通確認を行う。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// NewHealthHandler はヘルスチェックのハンドラーを生成する。
// checkerがnilの場合は常に200を返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
