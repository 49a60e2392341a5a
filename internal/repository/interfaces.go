// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/sitefeed/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// サービス層はこれを model.NewDuplicateWebsiteError に変換する。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

// WebsiteRepository はWebサイトと付随するRSSフィードの永続化インターフェース。
type WebsiteRepository interface {
	// ListByUserWithCounts はユーザーのWebサイト一覧を記事件数付きで作成日時の降順に返す。
	ListByUserWithCounts(ctx context.Context, userID string) ([]model.WebsiteWithCount, error)

	// FindByID は指定IDのWebサイトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Website, error)

	// FindByUserAndURL はユーザーIDとURLでWebサイトを検索する。見つからない場合はnilを返す。
	FindByUserAndURL(ctx context.Context, userID, url string) (*model.Website, error)

	// CreateWithFeed はWebサイトとRSSフィードを同一トランザクションで作成する。
	// (user_id, url) が重複する場合は ErrDuplicate を返す。
	CreateWithFeed(ctx context.Context, website *model.Website, feed *model.Feed) error

	// UpdateWithFeed はWebサイトのURL・タイトル・説明を更新し、
	// 同一トランザクションでフィードのメタデータとlast_build_dateを更新する。
	UpdateWithFeed(ctx context.Context, website *model.Website, feed *model.Feed) error

	// SetActive はWebサイトの有効フラグを更新する。
	SetActive(ctx context.Context, id string, active bool) error

	// UpdateLastChecked はlast_checked_atを更新する。
	UpdateLastChecked(ctx context.Context, id string, checkedAt time.Time) error

	// ListActive は有効なWebサイトを作成日時の昇順で返す。
	ListActive(ctx context.Context) ([]*model.Website, error)

	// DeleteCascade はarticles、rss_feeds、websitesの順に1トランザクションで削除する。
	DeleteCascade(ctx context.Context, id string) error
}

// FeedRepository はRSSフィードのメタデータ参照インターフェース。
type FeedRepository interface {
	// FindByFeedID は公開フィードIDでフィードを取得する。見つからない場合はnilを返す。
	FindByFeedID(ctx context.Context, feedID string) (*model.Feed, error)

	// FindByWebsiteID はWebサイトIDでフィードを取得する。見つからない場合はnilを返す。
	FindByWebsiteID(ctx context.Context, websiteID string) (*model.Feed, error)
}

// ArticleRepository は記事データの永続化インターフェース。
// 記事の同一性は (website_id, guid) で判定する。
type ArticleRepository interface {
	// Upsert は記事を作成する。同一 (website_id, guid) が存在する場合は全フィールドを上書きする。
	// 新規作成された場合はtrueを返す。
	Upsert(ctx context.Context, websiteID string, article model.ExtractedArticle) (bool, error)

	// ListLatestByWebsite はWebサイトの記事をpub_date降順で最大limit件返す。
	ListLatestByWebsite(ctx context.Context, websiteID string, limit int) ([]*model.Article, error)
}
