// Package scraper はWebサイトのHTMLを取得し、LLMで記事を抽出して保存するスクレイプパイプラインを提供する。
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/sitefeed/internal/metrics"
	"github.com/hitoshi/sitefeed/internal/model"
	"github.com/hitoshi/sitefeed/internal/repository"
	"github.com/hitoshi/sitefeed/internal/security"
)

// DefaultMaxBodySize は取得するHTMLの既定上限（5MB）。
const DefaultMaxBodySize int64 = 5 * 1024 * 1024

// Completer はチャット補完サービスのインターフェース。
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Sanitizer は記事説明文のサニタイズ機能のインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Options はパイプラインの動作設定。
type Options struct {
	MaxBodySize int64
	CompactHTML bool
}

// Pipeline はWebサイト1件分のスクレイプを実行する。
// 取得・抽出・保存の各段階は再試行しない。
type Pipeline struct {
	websiteRepo repository.WebsiteRepository
	articleRepo repository.ArticleRepository
	httpClient  *http.Client
	completer   Completer
	sanitizer   Sanitizer
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	maxBodySize int64
	compactHTML bool
	now         func() time.Time
}

// NewPipeline はPipelineの新しいインスタンスを生成する。
// httpClientにはSSRF防止機能付きのクライアントを渡すこと。
func NewPipeline(
	websiteRepo repository.WebsiteRepository,
	articleRepo repository.ArticleRepository,
	httpClient *http.Client,
	completer Completer,
	sanitizer Sanitizer,
	metricsCollector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Pipeline {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	return &Pipeline{
		websiteRepo: websiteRepo,
		articleRepo: articleRepo,
		httpClient:  httpClient,
		completer:   completer,
		sanitizer:   sanitizer,
		metrics:     metricsCollector,
		logger:      logger,
		maxBodySize: opts.MaxBodySize,
		compactHTML: opts.CompactHTML,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Scrape は指定Webサイトのスクレイプを実行し、結果を返す。
//
// last_checked_atは全記事のUPSERTが完了した後にのみ更新する。途中で失敗した実行では更新しない。
// 保存途中で失敗した場合、それまでにUPSERTした記事はロールバックしない。
func (p *Pipeline) Scrape(ctx context.Context, websiteID string) (*model.ScrapeResult, error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordScrapeLatency(time.Since(start))
	}()

	website, err := p.websiteRepo.FindByID(ctx, websiteID)
	if err != nil {
		return nil, fmt.Errorf("Webサイトの取得に失敗しました: %w", err)
	}
	if website == nil {
		return nil, model.NewWebsiteNotFoundError(websiteID)
	}

	page, err := p.fetch(ctx, website)
	if err != nil {
		p.metrics.RecordScrapeFailure(websiteID, metrics.ReasonFetch)
		return nil, err
	}

	if p.compactHTML {
		page = CompactHTML(page)
	}

	reply, err := p.completer.Complete(ctx, SystemPrompt, BuildPrompt(website.URL, page))
	if err != nil {
		p.metrics.RecordScrapeFailure(websiteID, metrics.ReasonCompletion)
		p.logger.Error("記事抽出の補完呼び出しに失敗しました",
			slog.String("website_id", websiteID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewCompletionFailedError(err.Error())
	}

	scrapedAt := p.now()
	articles, err := ParseReply(reply, scrapedAt, p.sanitizer.Sanitize)
	if err != nil {
		p.metrics.RecordScrapeFailure(websiteID, metrics.ReasonParse)
		p.logger.Warn("LLMの応答を解析できませんでした",
			slog.String("website_id", websiteID),
			slog.Int("reply_length", len(reply)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewParseFailedError(err.Error())
	}

	inserted, updated := 0, 0
	for _, a := range articles {
		created, err := p.articleRepo.Upsert(ctx, websiteID, a)
		if err != nil {
			p.metrics.RecordScrapeFailure(websiteID, metrics.ReasonStore)
			p.metrics.RecordArticlesUpserted(inserted, updated)
			return nil, fmt.Errorf("記事の保存に失敗しました: %w", err)
		}
		if created {
			inserted++
		} else {
			updated++
		}
	}
	p.metrics.RecordArticlesUpserted(inserted, updated)

	// 全記事の保存が完了した場合のみ最終チェック日時を更新する
	if err := p.websiteRepo.UpdateLastChecked(ctx, websiteID, p.now()); err != nil {
		p.metrics.RecordScrapeFailure(websiteID, metrics.ReasonStore)
		return nil, fmt.Errorf("最終チェック日時の更新に失敗しました: %w", err)
	}
	p.metrics.RecordScrapeSuccess(websiteID)

	p.logger.Info("スクレイプが完了しました",
		slog.String("website_id", websiteID),
		slog.String("url", website.URL),
		slog.Int("articles_found", len(articles)),
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return &model.ScrapeResult{
		Success:       true,
		ArticlesFound: len(articles),
		Articles:      articles,
		ScrapedAt:     scrapedAt.UnixMilli(),
	}, nil
}

// fetch はWebサイトのHTMLを取得する。非2xxとネットワークエラーはFetchFailedとして返す。
func (p *Pipeline) fetch(ctx context.Context, website *model.Website) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, website.URL, nil)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("Webサイトの取得に失敗しました",
			slog.String("website_id", website.ID),
			slog.String("url", website.URL),
			slog.String("error", err.Error()),
		)
		if security.IsBlocked(err) {
			return "", model.NewSSRFBlockedError()
		}
		return "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	p.metrics.RecordFetchStatus(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Warn("Webサイトがエラーステータスを返しました",
			slog.String("website_id", website.ID),
			slog.String("url", website.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		return "", model.NewFetchFailedError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return "", model.NewFetchFailedError(fmt.Sprintf("レスポンスの読み取りに失敗しました: %s", err.Error()))
	}
	return string(body), nil
}
