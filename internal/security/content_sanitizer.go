package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はLLMが抽出した記事説明文のサニタイズ機能を定義する。
// 説明文はRSSのdescriptionとしてそのまま配信されるため、保存前に必ず通す。
type ContentSanitizerService interface {
	// Sanitize は許可リスト外のタグと属性を除去したHTMLを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// contentSanitizer はbluemondayのポリシーを保持するContentSanitizerServiceの実装。
// Policyはゴルーチン間で共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は記事説明文向けのポリシーでサニタイザを生成する。
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, strong, em, b, i
//   - a: httpとhttpsの絶対URLのみ、rel="nofollow noreferrer" を付与
//   - 画像、スクリプト、スタイル、フレームは全て除去
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li", "blockquote",
		"strong", "em", "b", "i",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズし、前後の空白を除去して返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return strings.TrimSpace(s.policy.Sanitize(rawHTML))
}
