// Package model はドメインモデルを定義する。
package model

import "time"

// Website はユーザーが登録したスクレイピング対象のWebサイトを表す。
// (UserID, URL) の組はユーザーごとに一意。
type Website struct {
	ID            string
	URL           string
	Title         string
	Description   string // 空文字列は未設定を表す
	UserID        string
	IsActive      bool
	LastCheckedAt *time.Time // スクレイプパイプラインのみが更新する
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WebsiteWithCount はWebサイトと記事件数を結合したモデル。
// 一覧表示で使用する。
type WebsiteWithCount struct {
	Website
	ArticlesCount int
}

// Feed はWebサイトに1対1で紐づくRSSチャンネルのメタデータを表す。
// FeedIDは作成時に "feed_" + WebsiteID として決定し、以後変更しない。
type Feed struct {
	ID            string
	WebsiteID     string
	FeedID        string
	Title         string
	Description   string
	Link          string
	LastBuildDate time.Time
}

// FeedIDPrefix はFeedIDの接頭辞。
const FeedIDPrefix = "feed_"

// FeedIDForWebsite はWebサイトIDからFeedIDを導出する。
func FeedIDForWebsite(websiteID string) string {
	return FeedIDPrefix + websiteID
}

// DefaultFeedDescription は説明未設定のWebサイトに対するフィード説明文を返す。
func DefaultFeedDescription(title, description string) string {
	if description != "" {
		return description
	}
	return "RSS feed for " + title
}
