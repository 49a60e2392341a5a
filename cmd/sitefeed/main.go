// Command sitefeed はWebサイトをスクレイプしてRSSフィードを配信するサーバー。
//
// 使い方:
//
//	sitefeed [serve|worker|migrate|scrape [websiteID]|healthcheck]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/sitefeed/internal/app"
)

func main() {
	// .envは開発環境用。存在しなくてもエラーにしない。
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
