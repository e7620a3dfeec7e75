// Package handler はJSON APIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/postbook/internal/auth"
	"github.com/hitoshi/postbook/internal/middleware"
	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/policy"
	"github.com/hitoshi/postbook/internal/post"
	"github.com/hitoshi/postbook/internal/user"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// UserServiceInterface はAPIハンドラーが必要とするユーザーサービスのインターフェース。
type UserServiceInterface interface {
	Register(ctx context.Context, input user.RegisterInput) (*model.User, error)
	ListAll(ctx context.Context, caller policy.Caller) ([]*model.User, error)
}

// PostServiceInterface はAPIハンドラーが必要とする投稿サービスのインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, caller policy.Caller, input post.CreateInput) (*model.Post, error)
	Delete(ctx context.Context, caller policy.Caller, postID int64) (*model.Post, error)
	ListAllByOwner(ctx context.Context, caller policy.Caller, ownerID int64) ([]*model.Post, error)
}

// TokenServiceInterface はAPIトークンの発行を行うサービスのインターフェース。
type TokenServiceInterface interface {
	ObtainToken(ctx context.Context, creds auth.Credentials) (*model.Token, error)
}

// userResponse はユーザーのJSONレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

// postResponse は投稿のJSONレスポンス。
type postResponse struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	OwnerID int64  `json:"owner_id"`
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{ID: p.ID, Title: p.Title, Body: p.Body, OwnerID: p.OwnerID}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if apiErr, ok := model.AsAPIError(err); ok {
		middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// errMalformedBody はリクエストボディを解析できなかったことを表す。
var errMalformedBody = errors.New("malformed request body")

// decodeBody はJSONまたはフォーム形式のリクエストボディをdstに読み込む。
// 空のボディは空のオブジェクトとして扱う。
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return errMalformedBody
		}
		values := make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			values[key] = r.PostForm.Get(key)
		}
		raw, err := json.Marshal(values)
		if err != nil {
			return errMalformedBody
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return errMalformedBody
		}
		return nil
	default:
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return errMalformedBody
		}
		return nil
	}
}

// malformedBodyError はボディ解析失敗時のバリデーションエラーを返す。
func malformedBodyError() *model.APIError {
	fields := model.FieldErrors{}
	fields.Add(model.NonFieldErrorsKey, "リクエストボディの解析に失敗しました。")
	return model.NewValidationError(fields)
}

// parseIDParam はURLパラメータのIDを解析する。正の整数でない場合はfalseを返す。
func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

