package web

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// BodySanitizer は投稿本文を表示用の安全なHTMLに変換する。
// 許可リストにないタグと属性、on*イベント属性はすべて除去される。
type BodySanitizer struct {
	policy *bluemonday.Policy
}

// NewBodySanitizer はBodySanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em
//   - aタグ: http/https/mailtoのhrefのみ、rel="nofollow noreferrer"を付与
//   - 画像は許可しない
func NewBodySanitizer() *BodySanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &BodySanitizer{policy: p}
}

// Render は本文の改行を<br>に変換したうえでサニタイズする。
func (s *BodySanitizer) Render(body string) template.HTML {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "<br>\n")
	return template.HTML(s.policy.Sanitize(body))
}
