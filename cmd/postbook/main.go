// Command postbook はブログアプリケーションのサーバー・ワーカー・管理コマンドを提供する。
//
//	postbook [serve]          HTTPサーバー（API + Web画面）を起動する
//	postbook worker           期限切れセッションの定期削除を実行する
//	postbook migrate          データベースマイグレーションを適用する
//	postbook createsuperuser  管理者ユーザーを作成する
//	postbook healthcheck      /health を確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/postbook/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "postbook: %v\n", err)
		os.Exit(1)
	}
}
