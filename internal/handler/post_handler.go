package handler

import (
	"net/http"

	"github.com/hitoshi/postbook/internal/middleware"
	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/post"
)

// PostHandler は投稿の作成・削除のHTTPハンドラー。
type PostHandler struct {
	posts PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(posts PostServiceInterface) *PostHandler {
	return &PostHandler{posts: posts}
}

// CreatePost は呼び出し元を所有者として投稿を作成する。
// リクエストボディのowner_idは無視する。
// POST /api/posts/
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	if !caller.IsAuthenticated() {
		handleServiceError(w, r, model.NewUnauthenticatedError())
		return
	}

	var input post.CreateInput
	if err := decodeBody(w, r, &input); err != nil {
		handleServiceError(w, r, malformedBodyError())
		return
	}

	p, err := h.posts.Create(r.Context(), caller, input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// DeletePost は投稿を削除する。所有者以外は403、存在しない投稿は404。
// DELETE /api/posts/{id}/
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	if !caller.IsAuthenticated() {
		handleServiceError(w, r, model.NewUnauthenticatedError())
		return
	}

	postID, ok := parseIDParam(r, "id")
	if !ok {
		handleServiceError(w, r, model.NewNotFoundError())
		return
	}

	if _, err := h.posts.Delete(r.Context(), caller, postID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
