// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, website, scrape, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeWebsiteNotFound  = "WEBSITE_NOT_FOUND"
	ErrCodeFeedNotFound     = "FEED_NOT_FOUND"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeDuplicateWebsite = "DUPLICATE_WEBSITE"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeParseFailed      = "PARSE_FAILED"
	ErrCodeCompletionFailed = "COMPLETION_FAILED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
)

// NewWebsiteNotFoundError はWebサイト未検出エラーを生成する。
func NewWebsiteNotFoundError(websiteID string) *APIError {
	return &APIError{
		Code:     ErrCodeWebsiteNotFound,
		Message:  fmt.Sprintf("指定されたWebサイトが見つかりません: %s", websiteID),
		Category: "website",
		Action:   "WebサイトIDを確認してください。",
	}
}

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", feedID),
		Category: "website",
		Action:   "フィードURLを確認してください。",
	}
}

// NewForbiddenError は所有者以外による操作を拒否するエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このWebサイトを操作する権限がありません。",
		Category: "auth",
		Action:   "自分が登録したWebサイトのみ操作できます。",
	}
}

// NewDuplicateWebsiteError は同一URLのWebサイトが既に登録済みの場合のエラーを生成する。
func NewDuplicateWebsiteError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateWebsite,
		Message:  fmt.Sprintf("このWebサイトは既に登録されています: %s", url),
		Category: "website",
		Action:   "登録済みのWebサイト一覧を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewFetchFailedError はWebサイトの取得失敗エラーを生成する。
// 非2xxレスポンスとネットワークエラーの両方に使用する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("Webサイトの取得に失敗しました: %s", reason),
		Category: "scrape",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを登録してください。",
	}
}

// NewParseFailedError はLLM応答の解析失敗エラーを生成する。
func NewParseFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  fmt.Sprintf("LLMの応答をJSONとして解析できませんでした: %s", reason),
		Category: "scrape",
		Action:   "しばらく待ってから再度スクレイプしてください。",
	}
}

// NewCompletionFailedError は補完サービスの呼び出し失敗エラーを生成する。
func NewCompletionFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCompletionFailed,
		Message:  fmt.Sprintf("補完サービスの呼び出しに失敗しました: %s", reason),
		Category: "scrape",
		Action:   "しばらく待ってから再度スクレイプしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// HasCode はerrがcodeを持つAPIErrorかどうかを判定する。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
