package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/sitefeed/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation pq.ErrorCode = "23505"

// PostgresWebsiteRepo はPostgreSQLを使用したWebサイトリポジトリ。
type PostgresWebsiteRepo struct {
	db *sql.DB
}

// NewPostgresWebsiteRepo はPostgresWebsiteRepoを生成する。
func NewPostgresWebsiteRepo(db *sql.DB) *PostgresWebsiteRepo {
	return &PostgresWebsiteRepo{db: db}
}

const websiteColumns = `id, user_id, url, title, description, is_active, last_checked_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWebsite(row rowScanner, extra ...any) (*model.Website, error) {
	w := &model.Website{}
	var description sql.NullString
	var lastChecked sql.NullTime
	dest := []any{
		&w.ID, &w.UserID, &w.URL, &w.Title, &description,
		&w.IsActive, &lastChecked, &w.CreatedAt, &w.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	w.Description = nullStringValue(description)
	if lastChecked.Valid {
		t := lastChecked.Time
		w.LastCheckedAt = &t
	}
	return w, nil
}

// isUniqueViolation はerrが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// ListByUserWithCounts はユーザーのWebサイト一覧を記事件数付きで返す。
func (r *PostgresWebsiteRepo) ListByUserWithCounts(ctx context.Context, userID string) ([]model.WebsiteWithCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT w.id, w.user_id, w.url, w.title, w.description, w.is_active,
		        w.last_checked_at, w.created_at, w.updated_at,
		        COALESCE(a.cnt, 0)
		 FROM websites w
		 LEFT JOIN (
		     SELECT website_id, COUNT(*) AS cnt
		     FROM articles
		     WHERE website_id IN (SELECT id FROM websites WHERE user_id = $1)
		     GROUP BY website_id
		 ) a ON a.website_id = w.id
		 WHERE w.user_id = $1
		 ORDER BY w.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("Webサイト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	results := []model.WebsiteWithCount{}
	for rows.Next() {
		var count int
		w, err := scanWebsite(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("Webサイト行の読み取りに失敗しました: %w", err)
		}
		results = append(results, model.WebsiteWithCount{Website: *w, ArticlesCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Webサイト一覧の走査に失敗しました: %w", err)
	}
	return results, nil
}

// FindByID は指定IDのWebサイトを取得する。見つからない場合はnilを返す。
func (r *PostgresWebsiteRepo) FindByID(ctx context.Context, id string) (*model.Website, error) {
	w, err := scanWebsite(r.db.QueryRowContext(ctx,
		`SELECT `+websiteColumns+` FROM websites WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Webサイトの取得に失敗しました: %w", err)
	}
	return w, nil
}

// FindByUserAndURL はユーザーIDとURLでWebサイトを検索する。見つからない場合はnilを返す。
func (r *PostgresWebsiteRepo) FindByUserAndURL(ctx context.Context, userID, url string) (*model.Website, error) {
	w, err := scanWebsite(r.db.QueryRowContext(ctx,
		`SELECT `+websiteColumns+` FROM websites WHERE user_id = $1 AND url = $2`, userID, url,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Webサイトの検索に失敗しました: %w", err)
	}
	return w, nil
}

// CreateWithFeed はWebサイトとRSSフィードを同一トランザクションで作成する。
func (r *PostgresWebsiteRepo) CreateWithFeed(ctx context.Context, website *model.Website, feed *model.Feed) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO websites (id, user_id, url, title, description, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		website.ID, website.UserID, website.URL, website.Title, nullString(website.Description),
		website.IsActive, website.CreatedAt, website.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("Webサイトの作成に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rss_feeds (id, website_id, feed_id, title, description, link, last_build_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		feed.ID, feed.WebsiteID, feed.FeedID, feed.Title, feed.Description, feed.Link, feed.LastBuildDate,
	)
	if err != nil {
		return fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateWithFeed はWebサイトとフィードのメタデータを同一トランザクションで更新する。
// URLが同一ユーザーの別Webサイトと衝突する場合は ErrDuplicate を返す。
func (r *PostgresWebsiteRepo) UpdateWithFeed(ctx context.Context, website *model.Website, feed *model.Feed) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE websites SET url = $2, title = $3, description = $4, updated_at = $5 WHERE id = $1`,
		website.ID, website.URL, website.Title, nullString(website.Description), website.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("Webサイトの更新に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE rss_feeds SET title = $2, description = $3, link = $4, last_build_date = $5 WHERE website_id = $1`,
		feed.WebsiteID, feed.Title, feed.Description, feed.Link, feed.LastBuildDate,
	)
	if err != nil {
		return fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetActive はWebサイトの有効フラグを更新する。
func (r *PostgresWebsiteRepo) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE websites SET is_active = $2, updated_at = now() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("有効フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateLastChecked はlast_checked_atを更新する。
func (r *PostgresWebsiteRepo) UpdateLastChecked(ctx context.Context, id string, checkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE websites SET last_checked_at = $2, updated_at = now() WHERE id = $1`,
		id, checkedAt,
	)
	if err != nil {
		return fmt.Errorf("最終チェック日時の更新に失敗しました: %w", err)
	}
	return nil
}

// ListActive は有効なWebサイトを作成日時の昇順で返す。
func (r *PostgresWebsiteRepo) ListActive(ctx context.Context) ([]*model.Website, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+websiteColumns+` FROM websites WHERE is_active = true ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("有効なWebサイト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var websites []*model.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("Webサイト行の読み取りに失敗しました: %w", err)
		}
		websites = append(websites, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("有効なWebサイト一覧の走査に失敗しました: %w", err)
	}
	return websites, nil
}

// DeleteCascade は記事、フィード、Webサイトの順に1トランザクションで削除する。
func (r *PostgresWebsiteRepo) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE website_id = $1`, id); err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rss_feeds WHERE website_id = $1`, id); err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM websites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Webサイトの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("website not found: %s", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ WebsiteRepository = (*PostgresWebsiteRepo)(nil)
