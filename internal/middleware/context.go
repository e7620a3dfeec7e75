// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"

	"github.com/hitoshi/postbook/internal/policy"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	callerContextKey      = contextKey("caller")
	requestIDContextKey   = contextKey("request_id")
	requestInfoContextKey = contextKey("request_info")
	csrfTokenContextKey   = contextKey("csrf_token")
)

// CallerFromContext はリクエストコンテキストから呼び出し元を取得する。
// 認証ミドルウェアを通過していない場合は匿名を返す。
func CallerFromContext(ctx context.Context) policy.Caller {
	caller, ok := ctx.Value(callerContextKey).(policy.Caller)
	if !ok {
		return policy.Anonymous
	}
	return caller
}

// ContextWithCaller はコンテキストに呼び出し元を注入する。
// 外側のロギングミドルウェアにもユーザーIDを伝える。
func ContextWithCaller(ctx context.Context, caller policy.Caller) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = caller.UserID
	}
	return context.WithValue(ctx, callerContextKey, caller)
}

// RequestIDFromContext はリクエストIDを取得する。未設定の場合は空文字列を返す。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// requestInfo は内側のミドルウェアで判明した情報をロギングミドルウェアへ渡すための入れ物。
type requestInfo struct {
	userID int64
}
