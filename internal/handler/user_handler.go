package handler

import (
	"net/http"

	"github.com/hitoshi/postbook/internal/middleware"
	"github.com/hitoshi/postbook/internal/model"
)

// UserHandler はユーザー一覧とユーザー別投稿一覧のHTTPハンドラー。
type UserHandler struct {
	users UserServiceInterface
	posts PostServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserServiceInterface, posts PostServiceInterface) *UserHandler {
	return &UserHandler{
		users: users,
		posts: posts,
	}
}

// ListUsers は全ユーザーを新しい順に返す。
// GET /api/users/
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAll(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListUserPosts は指定ユーザーの投稿を新しい順に返す。
// GET /api/users/{id}/posts/
func (h *UserHandler) ListUserPosts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseIDParam(r, "id")
	if !ok {
		handleServiceError(w, r, model.NewNotFoundError())
		return
	}

	posts, err := h.posts.ListAllByOwner(r.Context(), middleware.CallerFromContext(r.Context()), ownerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]postResponse, len(posts))
	for i, p := range posts {
		resp[i] = toPostResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}
