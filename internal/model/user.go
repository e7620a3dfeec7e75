// Package model はドメインモデルを定義する。
package model

import "time"

// User は登録ユーザーを表す。
// ログインIDはEmailで、Nameは表示名として扱う。
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsStaff      bool
	IsSuperuser  bool
	CreatedAt    time.Time
}

// Session はWeb画面のログインセッションを表す。
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Token はAPI用のBearerトークンを表す。
// 1ユーザーにつき有効なトークンは常に1つ。
type Token struct {
	Key       string
	UserID    int64
	CreatedAt time.Time
}
