// Package pagination は固定サイズのページ分割を提供する。
package pagination

import (
	"strconv"

	"github.com/hitoshi/postbook/internal/model"
)

// DefaultPageSize は1ページあたりの既定件数。
const DefaultPageSize = 10

// Resolve はクエリ文字列のページ番号と全件数からページ情報を決定する。
// 数値でない・1未満の値は1ページ目、範囲外の値は最終ページとして扱う。
// 0件の場合も空の1ページを返す。
func Resolve(raw string, total, size int) model.Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}

	numPages := (total + size - 1) / size
	if numPages < 1 {
		numPages = 1
	}

	number, err := strconv.Atoi(raw)
	if err != nil || number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}

	return model.Page{
		Number:   number,
		Size:     size,
		Total:    total,
		NumPages: numPages,
	}
}
