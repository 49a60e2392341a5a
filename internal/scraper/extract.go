package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hitoshi/sitefeed/internal/model"
)

// ParseReply はLLMの応答本文をJSON配列として解釈し、検証済みの記事候補を返す。
// 応答がJSONでない、または配列でない場合はエラーを返す。
// title・link・guidが文字列でない候補は除外する。
// descriptionが文字列でなければ未設定、pubDateが数値でなければscrapedAtを使う。
func ParseReply(reply string, scrapedAt time.Time, sanitize func(string) string) ([]model.ExtractedArticle, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(reply)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("Failed to parse LLM response as JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("Failed to parse LLM response as JSON: trailing data after JSON value")
	}

	candidates, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("Failed to parse LLM response as JSON: Not an array")
	}

	fallback := scrapedAt.UnixMilli()
	articles := make([]model.ExtractedArticle, 0, len(candidates))
	for _, c := range candidates {
		obj, ok := c.(map[string]any)
		if !ok {
			continue
		}
		title, okTitle := obj["title"].(string)
		link, okLink := obj["link"].(string)
		guid, okGUID := obj["guid"].(string)
		if !okTitle || !okLink || !okGUID {
			continue
		}

		a := model.ExtractedArticle{
			Title:   title,
			Link:    link,
			GUID:    guid,
			PubDate: fallback,
		}
		if desc, ok := obj["description"].(string); ok {
			if sanitize != nil {
				desc = sanitize(desc)
			}
			a.Description = &desc
		}
		if n, ok := obj["pubDate"].(json.Number); ok {
			a.PubDate = numberToMillis(n, fallback)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// maxPubDateMillis は日時として扱うエポックミリ秒の絶対値の上限（±100,000,000日）。
const maxPubDateMillis = 8_640_000_000_000_000

// numberToMillis はJSON数値をエポックミリ秒に変換する。小数部は切り捨てる。
// 範囲外の値は数値でないものとみなしてfallbackを返す。
func numberToMillis(n json.Number, fallback int64) int64 {
	f, err := n.Float64()
	if err != nil || f > maxPubDateMillis || f < -maxPubDateMillis {
		return fallback
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	return int64(f)
}
