// Package model はドメインモデルを定義する。
package model

import "time"

// Article はスクレイプによって取得・保存された記事を表す。
// (WebsiteID, GUID) の組で一意。
type Article struct {
	ID          string
	WebsiteID   string
	Title       string
	Link        string
	Description *string // nilは未設定を表す
	PubDate     time.Time
	GUID        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExtractedArticle はLLMの応答から検証・正規化された未保存の記事データを表す。
// スクレイプパイプラインがArticleStoreへのUPSERTに使用する。
type ExtractedArticle struct {
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	Description *string `json:"description,omitempty"`
	PubDate     int64   `json:"pubDate"` // エポックミリ秒
	GUID        string  `json:"guid"`
}

// PubTime はPubDateをtime.Timeに変換する。
func (a ExtractedArticle) PubTime() time.Time {
	return time.UnixMilli(a.PubDate).UTC()
}

// ScrapeResult はスクレイプパイプライン1回分の結果を表す。
type ScrapeResult struct {
	Success       bool               `json:"success"`
	ArticlesFound int                `json:"articlesFound"`
	Articles      []ExtractedArticle `json:"articles"`
	ScrapedAt     int64              `json:"scrapedAt"` // エポックミリ秒
	Error         string             `json:"error,omitempty"`
}
