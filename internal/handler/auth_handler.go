package handler

import (
	"net/http"

	"github.com/hitoshi/postbook/internal/auth"
	"github.com/hitoshi/postbook/internal/user"
)

// AuthHandler はユーザー登録とトークン発行のHTTPハンドラー。
type AuthHandler struct {
	users  UserServiceInterface
	tokens TokenServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(users UserServiceInterface, tokens TokenServiceInterface) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
	}
}

// Signup は新しいユーザーを登録する。
// POST /api/auth/signup/
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input user.RegisterInput
	if err := decodeBody(w, r, &input); err != nil {
		handleServiceError(w, r, malformedBodyError())
		return
	}

	u, err := h.users.Register(r.Context(), input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// tokenResponse はトークン発行のレスポンス。
type tokenResponse struct {
	Token string `json:"token"`
}

// Login はメールアドレスとパスワードを検証し、APIトークンを返す。
// POST /api/auth/login/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := decodeBody(w, r, &creds); err != nil {
		handleServiceError(w, r, malformedBodyError())
		return
	}

	token, err := h.tokens.ObtainToken(r.Context(), creds)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token.Key})
}
