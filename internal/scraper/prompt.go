package scraper

import "fmt"

const (
	// UserAgent はページ取得時に送信するUser-Agent。
	UserAgent = "Mozilla/5.0 (compatible; RSS-Generator/2.0)"

	// SystemPrompt は補完サービスに渡すシステムメッセージ。
	SystemPrompt = "You are a helpful assistant."

	// maxPromptArticles はLLMに抽出を依頼する記事数の上限。
	maxPromptArticles = 20
)

// BuildPrompt はHTMLとサイトURLを埋め込んだ記事抽出プロンプトを組み立てる。
func BuildPrompt(siteURL, html string) string {
	return fmt.Sprintf(
		"You are an expert web scraper. Given the following HTML from a website, "+
			"extract up to %d recent articles as JSON objects with the following fields: "+
			"title (string), link (string, absolute URL), description (string, optional), "+
			"pubDate (number, ms since epoch), guid (string, unique per article). "+
			"Use the website URL as context: %s. Return a JSON array. "+
			"If you can't find articles, return an empty array.\n\nHTML:\n%s",
		maxPromptArticles, siteURL, html,
	)
}
