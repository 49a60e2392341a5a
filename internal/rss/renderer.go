// Package rss はWebサイトの記事をRSS 2.0のXMLとして描画する。
package rss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/sitefeed/internal/model"
	"github.com/hitoshi/sitefeed/internal/repository"
)

// MaxItems は1フィードに含める記事数の上限。
const MaxItems = 50

// Generator はchannelのgenerator要素の値。
const Generator = "Custom RSS Generator"

// ErrFeedNotFound は指定されたフィードIDが存在しない場合のエラー。
var ErrFeedNotFound = errors.New("feed not found")

// Renderer はフィードIDからRSS 2.0文書を生成する。
type Renderer struct {
	feedRepo    repository.FeedRepository
	articleRepo repository.ArticleRepository
}

// NewRenderer はRendererを生成する。
func NewRenderer(feedRepo repository.FeedRepository, articleRepo repository.ArticleRepository) *Renderer {
	return &Renderer{feedRepo: feedRepo, articleRepo: articleRepo}
}

// Render はフィードと最新記事（pub_date降順、最大MaxItems件）からRSS文書を生成する。
// フィードが存在しない場合は ErrFeedNotFound を返す。読み取り専用で副作用はない。
func (r *Renderer) Render(ctx context.Context, feedID string) ([]byte, error) {
	feed, err := r.feedRepo.FindByFeedID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, ErrFeedNotFound
	}

	articles, err := r.articleRepo.ListLatestByWebsite(ctx, feed.WebsiteID, MaxItems)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	if len(articles) > MaxItems {
		articles = articles[:MaxItems]
	}

	var buf bytes.Buffer
	if err := Write(&buf, feed, articles); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write はRSS 2.0文書をwに書き出す。記事は渡された順序のまま出力する。
func Write(w io.Writer, feed *model.Feed, articles []*model.Article) error {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss version="2.0">` + "\n")
	b.WriteString("  <channel>\n")
	writeElement(&b, "    ", "title", feed.Title)
	writeElement(&b, "    ", "description", feed.Description)
	writeElement(&b, "    ", "link", feed.Link)
	writeElement(&b, "    ", "lastBuildDate", formatDate(feed.LastBuildDate))
	writeElement(&b, "    ", "generator", Generator)

	for _, a := range articles {
		description := ""
		if a.Description != nil {
			description = *a.Description
		}
		b.WriteString("    <item>\n")
		writeElement(&b, "      ", "title", a.Title)
		writeElement(&b, "      ", "link", a.Link)
		writeElement(&b, "      ", "description", description)
		writeElement(&b, "      ", "pubDate", formatDate(a.PubDate))
		writeElement(&b, "      ", "guid", a.GUID)
		b.WriteString("    </item>\n")
	}

	b.WriteString("  </channel>\n")
	b.WriteString("</rss>\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("RSSの書き出しに失敗しました: %w", err)
	}
	return nil
}

func writeElement(b *strings.Builder, indent, name, value string) {
	b.WriteString(indent)
	b.WriteString("<" + name + ">")
	b.WriteString(EscapeXML(value))
	b.WriteString("</" + name + ">\n")
}

// formatDate はRFC 1123形式（GMT）で日時を整形する。
func formatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeXML は & < > " ' をエスケープする。
// XML 1.0で使用できない制御文字は除去する。
func EscapeXML(s string) string {
	return xmlReplacer.Replace(strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, s))
}

func isXMLChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}
