package model

import "time"

// 投稿フィールドの上限値
const (
	PostTitleMaxLength = 60
	UserNameMaxLength  = 150
)

// Post はユーザーが作成した投稿を表す。
// OwnerIDは作成時に一度だけ設定され、以後変更されない。
type Post struct {
	ID        int64
	Title     string
	Body      string
	OwnerID   int64
	CreatedAt time.Time
}

// Page はページネーションされた一覧の現在ページ情報。
type Page struct {
	Number   int // 1始まりのページ番号
	Size     int // 1ページあたりの件数
	Total    int // 全件数
	NumPages int // 総ページ数（0件でも1）
}

// Offset は現在ページの先頭要素のオフセットを返す。
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// HasPrev は前のページが存在するかを返す。
func (p Page) HasPrev() bool {
	return p.Number > 1
}

// HasNext は次のページが存在するかを返す。
func (p Page) HasNext() bool {
	return p.Number < p.NumPages
}

// PrevNumber は前のページ番号を返す。
func (p Page) PrevNumber() int {
	return p.Number - 1
}

// NextNumber は次のページ番号を返す。
func (p Page) NextNumber() int {
	return p.Number + 1
}
