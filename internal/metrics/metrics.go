// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// スクレイプ失敗理由のラベル値。
const (
	ReasonFetch      = "fetch"
	ReasonCompletion = "completion"
	ReasonParse      = "parse"
	ReasonStore      = "store"
)

// フィード配信結果のラベル値。
const (
	RenderOK       = "ok"
	RenderNotFound = "not_found"
	RenderError    = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// スクレイプパイプラインとフィード配信ハンドラーから利用する。
type MetricsCollector interface {
	RecordScrapeSuccess(websiteID string)
	RecordScrapeFailure(websiteID string, reason string)
	RecordFetchStatus(statusCode int)
	RecordScrapeLatency(duration time.Duration)
	RecordArticlesUpserted(inserted, updated int)
	RecordFeedRender(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	scrapeSuccess    prometheus.Counter
	scrapeFail       *prometheus.CounterVec
	fetchStatus      *prometheus.CounterVec
	scrapeLatency    prometheus.Histogram
	articlesUpserted *prometheus.CounterVec
	feedRenders      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scrapeSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitefeed_scrape_success_total",
			Help: "スクレイプ成功の合計数",
		}),
		scrapeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitefeed_scrape_fail_total",
			Help: "失敗理由別のスクレイプ失敗数",
		}, []string{"reason"}),
		fetchStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitefeed_fetch_status_total",
			Help: "ページ取得時のHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		// LLM呼び出しを含むため既定より長いバケットを使う
		scrapeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitefeed_scrape_latency_seconds",
			Help:    "スクレイプ1回あたりの所要時間（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		articlesUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitefeed_articles_upserted_total",
			Help: "UPSERTされた記事数（inserted/updated）",
		}, []string{"result"}),
		feedRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitefeed_feed_renders_total",
			Help: "RSSフィード配信の結果別件数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.scrapeSuccess,
		c.scrapeFail,
		c.fetchStatus,
		c.scrapeLatency,
		c.articlesUpserted,
		c.feedRenders,
	)

	return c
}

// RecordScrapeSuccess はスクレイプ成功を記録する。
func (c *Collector) RecordScrapeSuccess(websiteID string) {
	c.scrapeSuccess.Inc()
}

// RecordScrapeFailure はスクレイプ失敗を理由別に記録する。
func (c *Collector) RecordScrapeFailure(websiteID string, reason string) {
	c.scrapeFail.WithLabelValues(reason).Inc()
}

// RecordFetchStatus はページ取得のHTTPステータスコードを記録する。
func (c *Collector) RecordFetchStatus(statusCode int) {
	c.fetchStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordScrapeLatency はスクレイプの所要時間を記録する。
func (c *Collector) RecordScrapeLatency(duration time.Duration) {
	c.scrapeLatency.Observe(duration.Seconds())
}

// RecordArticlesUpserted は新規作成と上書きの件数を記録する。
func (c *Collector) RecordArticlesUpserted(inserted, updated int) {
	c.articlesUpserted.WithLabelValues("inserted").Add(float64(inserted))
	c.articlesUpserted.WithLabelValues("updated").Add(float64(updated))
}

// RecordFeedRender はRSSフィード配信の結果を記録する。
func (c *Collector) RecordFeedRender(result string) {
	c.feedRenders.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
