package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページテンプレート名
const (
	pageUserList          = "user_list.html"
	pagePostList          = "post_list.html"
	pagePostForm          = "post_form.html"
	pagePostConfirmDelete = "post_confirm_delete.html"
	pageSignup            = "signup.html"
	pageLogin             = "login.html"
	pageLoggedOut         = "logged_out.html"
	pageError             = "error.html"
)

var pageNames = []string{
	pageUserList, pagePostList, pagePostForm, pagePostConfirmDelete,
	pageSignup, pageLogin, pageLoggedOut, pageError,
}

// viewer はナビゲーションに表示する閲覧者の情報。
type viewer struct {
	Authenticated bool
	ID            int64
	Name          string
}

// pageData はすべてのページテンプレートに渡すデータ。
type pageData struct {
	Viewer    viewer
	CSRFToken string
	Content   any
}

// renderer はbase.htmlと各ページを組み合わせたテンプレート群を保持する。
type renderer struct {
	pages map[string]*template.Template
}

// newRenderer は埋め込みテンプレートをすべて解析する。
func newRenderer(sanitizer *BodySanitizer) (*renderer, error) {
	funcs := template.FuncMap{
		"renderBody": sanitizer.Render,
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &renderer{pages: pages}, nil
}

// render はページを描画する。描画に失敗した場合は途中の出力を捨てて500を返す。
func (rd *renderer) render(w http.ResponseWriter, status int, page string, data pageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		slog.Error("unknown template", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		slog.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write response", slog.String("error", err.Error()))
	}
}
