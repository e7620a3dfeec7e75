// Package web はサーバーサイドレンダリングのWeb画面を提供する。
//
// 認証はセッションCookieで行い、認可の判断はAPIと同じpolicyパッケージに委ねる。
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/postbook/internal/auth"
	"github.com/hitoshi/postbook/internal/middleware"
	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/policy"
	"github.com/hitoshi/postbook/internal/post"
	"github.com/hitoshi/postbook/internal/user"
)

const (
	loginPath     = "/auth/login/"
	forbiddenPath = "/403/"
)

// UserService はWeb画面が必要とするユーザーサービスのインターフェース。
type UserService interface {
	Register(ctx context.Context, input user.RegisterInput) (*model.User, error)
	List(ctx context.Context, caller policy.Caller, pageParam string) (*user.Page, error)
	Get(ctx context.Context, id int64) (*model.User, error)
}

// PostService はWeb画面が必要とする投稿サービスのインターフェース。
type PostService interface {
	Create(ctx context.Context, caller policy.Caller, input post.CreateInput) (*model.Post, error)
	Get(ctx context.Context, postID int64) (*model.Post, error)
	Delete(ctx context.Context, caller policy.Caller, postID int64) (*model.Post, error)
	ListByOwner(ctx context.Context, caller policy.Caller, ownerID int64, pageParam string) (*post.Page, error)
}

// SessionService はログイン・ログアウトを行うサービスのインターフェース。
type SessionService interface {
	Login(ctx context.Context, creds auth.Credentials) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// CookieConfig はセッションCookieの設定。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// Handler はWeb画面のHTTPハンドラー。
type Handler struct {
	users    UserService
	posts    PostService
	sessions SessionService
	cookie   CookieConfig
	renderer *renderer
}

// NewHandler はHandlerを生成する。テンプレートの解析に失敗した場合はエラーを返す。
func NewHandler(users UserService, posts PostService, sessions SessionService, cookie CookieConfig) (*Handler, error) {
	rd, err := newRenderer(NewBodySanitizer())
	if err != nil {
		return nil, err
	}
	return &Handler{
		users:    users,
		posts:    posts,
		sessions: sessions,
		cookie:   cookie,
		renderer: rd,
	}, nil
}

// --- 共通処理 ---

// page はリクエストの閲覧者情報とCSRFトークンを含むページデータを組み立てる。
func (h *Handler) page(r *http.Request, content any) pageData {
	data := pageData{
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Content:   content,
	}

	caller := middleware.CallerFromContext(r.Context())
	if !caller.IsAuthenticated() {
		return data
	}
	u, err := h.users.Get(r.Context(), caller.UserID)
	if err != nil {
		if !model.IsCode(err, model.ErrCodeUserNotFound) {
			slog.Error("failed to load viewer", slog.String("error", err.Error()))
		}
		return data
	}
	data.Viewer = viewer{Authenticated: true, ID: u.ID, Name: u.Name}
	return data
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, content any) {
	h.renderer.render(w, status, name, h.page(r, content))
}

// errorContent はエラーページの表示内容。
type errorContent struct {
	Status  int
	Heading string
	Message string
}

var errorPages = map[int]errorContent{
	http.StatusForbidden:           {Heading: "Forbidden", Message: "このページにアクセスする権限がありません。"},
	http.StatusNotFound:            {Heading: "Not Found", Message: "お探しのページは見つかりませんでした。"},
	http.StatusMethodNotAllowed:    {Heading: "Method Not Allowed", Message: "このページはその操作に対応していません。"},
	http.StatusTooManyRequests:     {Heading: "Too Many Requests", Message: "リクエストが多すぎます。しばらく待ってから再度お試しください。"},
	http.StatusInternalServerError: {Heading: "Server Error", Message: "内部エラーが発生しました。しばらく待ってから再度お試しください。"},
}

// renderError はステータスに対応するエラーページを描画する。
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int) {
	content, ok := errorPages[status]
	if !ok {
		content = errorContent{Heading: http.StatusText(status), Message: http.StatusText(status)}
	}
	content.Status = status
	h.render(w, r, status, pageError, content)
}

// handleError はサービス層のエラーを画面遷移に変換する。
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		slog.Error("internal server error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		h.renderError(w, r, http.StatusInternalServerError)
		return
	}

	switch apiErr.Code {
	case model.ErrCodeUnauthenticated:
		redirectToLogin(w, r)
	case model.ErrCodeForbidden:
		http.Redirect(w, r, forbiddenPath, http.StatusFound)
	default:
		h.renderError(w, r, middleware.StatusForError(apiErr))
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, loginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
}

// parseID はURLパラメータのIDを解析する。正の整数でない場合はfalseを返す。
func parseID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// userPostsPath はユーザーの投稿一覧のパスを返す。
func userPostsPath(userID int64) string {
	return fmt.Sprintf("/users/%d/posts/", userID)
}

// safeNext はリダイレクト先として安全な同一オリジンのパスだけを返す。
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if strings.ContainsAny(next, "\r\n") {
		return "/"
	}
	return next
}

// --- 一覧 ---

// UserList はユーザー一覧をページ単位で表示する。
// GET /
func (h *Handler) UserList(w http.ResponseWriter, r *http.Request) {
	page, err := h.users.List(r.Context(), middleware.CallerFromContext(r.Context()), r.URL.Query().Get("page"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pageUserList, page)
}

// UserPosts はユーザーの投稿一覧を新しい順にページ単位で表示する。
// GET /users/{id}/posts/
func (h *Handler) UserPosts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseID(r, "id")
	if !ok {
		h.renderError(w, r, http.StatusNotFound)
		return
	}

	page, err := h.posts.ListByOwner(r.Context(), middleware.CallerFromContext(r.Context()), ownerID, r.URL.Query().Get("page"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pagePostList, page)
}

// --- 投稿の作成・削除 ---

// postFormContent は投稿フォームの表示内容。
type postFormContent struct {
	Title  string
	Body   string
	Errors model.FieldErrors
}

// NewPostForm は投稿フォームを表示する。
// GET /posts/new/
func (h *Handler) NewPostForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pagePostForm, postFormContent{})
}

// CreatePost は投稿を作成し、自分の投稿一覧へリダイレクトする。
// 入力エラーの場合はフォームを再表示する。
// POST /posts/new/
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	input := post.CreateInput{
		Title: r.PostFormValue("title"),
		Body:  r.PostFormValue("body"),
	}

	caller := middleware.CallerFromContext(r.Context())
	p, err := h.posts.Create(r.Context(), caller, input)
	if err != nil {
		if apiErr, ok := model.AsAPIError(err); ok && apiErr.Code == model.ErrCodeValidationFailed {
			h.render(w, r, http.StatusOK, pagePostForm, postFormContent{
				Title:  input.Title,
				Body:   input.Body,
				Errors: apiErr.Fields,
			})
			return
		}
		h.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, userPostsPath(p.OwnerID), http.StatusFound)
}

// deleteContent は削除確認画面の表示内容。
type deleteContent struct {
	Post *model.Post
}

// ConfirmDelete は削除確認画面を表示する。所有者以外は403ページへリダイレクトする。
// GET /posts/{id}/delete/
func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseID(r, "id")
	if !ok {
		h.renderError(w, r, http.StatusNotFound)
		return
	}

	p, err := h.posts.Get(r.Context(), postID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := policy.CanDeletePost(middleware.CallerFromContext(r.Context()), p); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pagePostConfirmDelete, deleteContent{Post: p})
}

// DeletePost は投稿を削除し、所有者の投稿一覧へリダイレクトする。
// POST /posts/{id}/delete/
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseID(r, "id")
	if !ok {
		h.renderError(w, r, http.StatusNotFound)
		return
	}

	p, err := h.posts.Delete(r.Context(), middleware.CallerFromContext(r.Context()), postID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, userPostsPath(p.OwnerID), http.StatusFound)
}

// --- 認証 ---

// signupContent はユーザー登録フォームの表示内容。パスワードは再表示しない。
type signupContent struct {
	Name   string
	Email  string
	Errors model.FieldErrors
}

// SignupForm はユーザー登録フォームを表示する。
// GET /auth/signup/
func (h *Handler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageSignup, signupContent{})
}

// Signup はユーザーを登録し、ログイン画面へリダイレクトする。
// POST /auth/signup/
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	content := signupContent{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
	}
	password1 := r.PostFormValue("password1")
	password2 := r.PostFormValue("password2")

	if password1 == "" || password2 == "" || password1 != password2 {
		fields := model.FieldErrors{}
		switch {
		case password1 == "":
			fields.Add("password1", "この項目は必須です。")
		case password2 == "":
			fields.Add("password2", "この項目は必須です。")
		default:
			fields.Add("password2", "確認用パスワードが一致しません。")
		}
		content.Errors = fields
		h.render(w, r, http.StatusOK, pageSignup, content)
		return
	}

	_, err := h.users.Register(r.Context(), user.RegisterInput{
		Email:    content.Email,
		Name:     content.Name,
		Password: password1,
	})
	if err != nil {
		apiErr, ok := model.AsAPIError(err)
		if !ok || apiErr.Code != model.ErrCodeValidationFailed {
			h.handleError(w, r, err)
			return
		}
		content.Errors = signupFieldErrors(apiErr.Fields)
		h.render(w, r, http.StatusOK, pageSignup, content)
		return
	}

	http.Redirect(w, r, loginPath, http.StatusFound)
}

// signupFieldErrors はパスワードポリシーのエラーを確認用パスワード欄に付け替える。
func signupFieldErrors(fields model.FieldErrors) model.FieldErrors {
	out := make(model.FieldErrors, len(fields))
	for field, msgs := range fields {
		if field == "password" {
			field = "password2"
		}
		out[field] = append(out[field], msgs...)
	}
	return out
}

// loginContent はログインフォームの表示内容。
type loginContent struct {
	Email  string
	Next   string
	Errors model.FieldErrors
}

// LoginForm はログインフォームを表示する。
// GET /auth/login/
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageLogin, loginContent{Next: r.URL.Query().Get("next")})
}

// Login はセッションを発行し、nextで指定されたパスへリダイレクトする。
// POST /auth/login/
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	content := loginContent{
		Email: r.PostFormValue("email"),
		Next:  r.PostFormValue("next"),
	}
	if content.Next == "" {
		content.Next = r.URL.Query().Get("next")
	}

	session, err := h.sessions.Login(r.Context(), auth.Credentials{
		Email:    content.Email,
		Password: r.PostFormValue("password"),
	})
	if err != nil {
		apiErr, ok := model.AsAPIError(err)
		if !ok || apiErr.Code != model.ErrCodeValidationFailed {
			h.handleError(w, r, err)
			return
		}
		content.Errors = apiErr.Fields
		h.render(w, r, http.StatusOK, pageLogin, content)
		return
	}

	// 既存のセッションは破棄して新しいセッションに切り替える
	if old, err := r.Cookie(middleware.SessionCookieName); err == nil && old.Value != "" {
		if err := h.sessions.Logout(r.Context(), old.Value); err != nil {
			slog.Warn("failed to discard previous session", slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   h.cookie.MaxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, safeNext(content.Next), http.StatusFound)
}

// Logout はセッションを破棄してCookieを削除し、ログアウト画面を表示する。
// POST /auth/logout/
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if err := h.sessions.Logout(r.Context(), cookie.Value); err != nil {
			h.handleError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	// ログアウト後のページは匿名として描画する
	h.renderer.render(w, http.StatusOK, pageLoggedOut, pageData{
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	})
}

// --- エラーページ ---

// ErrorPage は指定ステータスのエラーページを返すハンドラーを生成する。
// GET /403/, /404/, /500/
func (h *Handler) ErrorPage(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderError(w, r, status)
	}
}
