package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sitefeed/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// Upsert は記事を作成し、(website_id, guid) が既に存在する場合は全フィールドを上書きする。
// xmax = 0 は行がこの文で挿入されたことを示す。
func (r *PostgresArticleRepo) Upsert(ctx context.Context, websiteID string, article model.ExtractedArticle) (bool, error) {
	now := time.Now().UTC()
	var description sql.NullString
	if article.Description != nil {
		description = sql.NullString{String: *article.Description, Valid: true}
	}

	var inserted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO articles (id, website_id, title, link, description, pub_date, guid, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (website_id, guid) DO UPDATE SET
		     title = EXCLUDED.title,
		     link = EXCLUDED.link,
		     description = EXCLUDED.description,
		     pub_date = EXCLUDED.pub_date,
		     updated_at = EXCLUDED.updated_at
		 RETURNING (xmax = 0)`,
		uuid.New().String(), websiteID, article.Title, article.Link, description,
		article.PubTime(), article.GUID, now,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("記事のUPSERTに失敗しました: %w", err)
	}
	return inserted, nil
}

// ListLatestByWebsite はWebサイトの記事をpub_date降順で最大limit件返す。
func (r *PostgresArticleRepo) ListLatestByWebsite(ctx context.Context, websiteID string, limit int) ([]*model.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, website_id, title, link, description, pub_date, guid, created_at, updated_at
		 FROM articles
		 WHERE website_id = $1
		 ORDER BY pub_date DESC, id DESC
		 LIMIT $2`,
		websiteID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	articles := []*model.Article{}
	for rows.Next() {
		a := &model.Article{}
		var description sql.NullString
		if err := rows.Scan(
			&a.ID, &a.WebsiteID, &a.Title, &a.Link, &description,
			&a.PubDate, &a.GUID, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}
		if description.Valid {
			d := description.String
			a.Description = &d
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}
	return articles, nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
