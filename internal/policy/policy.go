// Package policy はコンテンツ操作の認可ルールを提供する。
//
// Web画面とAPIの両方が同じ関数を呼び出すことで、
// 2つの経路で認可の判断が食い違わないようにする。
// いずれの関数も副作用を持たない。
package policy

import "github.com/hitoshi/postbook/internal/model"

// Caller はリクエストを送ったユーザーを表す。
// ゼロ値は未認証（匿名）の呼び出し元。
type Caller struct {
	UserID int64
}

// Anonymous は未認証の呼び出し元。
var Anonymous = Caller{}

// AuthenticatedAs は指定ユーザーとして認証済みの呼び出し元を返す。
func AuthenticatedAs(userID int64) Caller {
	return Caller{UserID: userID}
}

// IsAuthenticated は呼び出し元が認証済みかを返す。
func (c Caller) IsAuthenticated() bool {
	return c.UserID > 0
}

// CanListUsers はユーザー一覧の閲覧可否を返す。公開ディレクトリのため常に許可する。
func CanListUsers(c Caller) bool {
	return true
}

// CanListPosts はユーザーの投稿一覧の閲覧可否を返す。
// 閲覧は常に許可し、isOwnerで呼び出し元が一覧の持ち主かどうかを併せて返す。
func CanListPosts(c Caller, ownerID int64) (allowed bool, isOwner bool) {
	return true, c.IsAuthenticated() && c.UserID == ownerID
}

// CanCreatePost は投稿作成の可否を判定する。
// 未認証の場合はUnauthenticatedエラーを返す。
func CanCreatePost(c Caller) error {
	if !c.IsAuthenticated() {
		return model.NewUnauthenticatedError()
	}
	return nil
}

// CanDeletePost は投稿削除の可否を判定する。
// 未認証はUnauthenticated、所有者以外の認証済みユーザーはForbiddenを返す。
func CanDeletePost(c Caller, post *model.Post) error {
	if !c.IsAuthenticated() {
		return model.NewUnauthenticatedError()
	}
	if post == nil || post.OwnerID != c.UserID {
		return model.NewForbiddenError()
	}
	return nil
}
