package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sitefeed/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したRSSフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

const feedColumns = `id, website_id, feed_id, title, description, link, last_build_date`

// FindByFeedID は公開フィードIDでフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByFeedID(ctx context.Context, feedID string) (*model.Feed, error) {
	return r.findOne(ctx, `SELECT `+feedColumns+` FROM rss_feeds WHERE feed_id = $1`, feedID)
}

// FindByWebsiteID はWebサイトIDでフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByWebsiteID(ctx context.Context, websiteID string) (*model.Feed, error) {
	return r.findOne(ctx, `SELECT `+feedColumns+` FROM rss_feeds WHERE website_id = $1`, websiteID)
}

func (r *PostgresFeedRepo) findOne(ctx context.Context, query string, arg string) (*model.Feed, error) {
	feed := &model.Feed{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&feed.ID, &feed.WebsiteID, &feed.FeedID,
		&feed.Title, &feed.Description, &feed.Link, &feed.LastBuildDate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	return feed, nil
}

// nullString は空文字列をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
