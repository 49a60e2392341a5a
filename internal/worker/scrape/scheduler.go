// Package scrape は登録済みWebサイトの日次スクレイプスケジューラを提供する。
package scrape

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/sitefeed/internal/model"
)

// WebsiteLister はスケジュール対象のWebサイトを列挙するインターフェース。
type WebsiteLister interface {
	ListActive(ctx context.Context) ([]*model.Website, error)
}

// Scraper は1サイト分のスクレイプを実行するインターフェース。
type Scraper interface {
	Scrape(ctx context.Context, websiteID string) (*model.ScrapeResult, error)
}

// Job はスクレイプサイクルの後に続けて実行される日次ジョブ。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler は毎日UTCの指定時刻に有効なWebサイトを一巡してスクレイプする。
// maxConcurrencyが1以下なら逐次実行、2以上ならsemaphoreで並列数を制御する。
type Scheduler struct {
	websites       WebsiteLister
	scraper        Scraper
	logger         *slog.Logger
	hour           int
	maxConcurrency int
	jobs           []Job

	now func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// hourが0〜23の範囲外の場合は0時を使用する。
func NewScheduler(
	websites WebsiteLister,
	scraper Scraper,
	logger *slog.Logger,
	hour int,
	maxConcurrency int,
) *Scheduler {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scheduler{
		websites:       websites,
		scraper:        scraper,
		logger:         logger,
		hour:           hour,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// AddJob はサイクル後に実行するジョブを登録する。
func (s *Scheduler) AddJob(job Job) {
	s.jobs = append(s.jobs, job)
}

// NextRun はnowより後で最初に訪れるUTCのhour:00を返す。
// nowがちょうどhour:00の場合は翌日を返す。
func NextRun(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start はコンテキストがキャンセルされるまで日次サイクルを繰り返す。
// 起動直後には実行せず、最初の予定時刻まで待機する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("スクレイプスケジューラを開始しました",
		slog.Int("hour_utc", s.hour),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	for {
		next := NextRun(s.now(), s.hour)
		s.logger.Info("次回のスクレイプサイクルを待機します",
			slog.Time("next_run", next),
		)

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("スクレイプスケジューラを停止しました")
			return
		case <-timer.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("スクレイプサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は有効なWebサイトを1回ずつスクレイプし、続けて登録済みジョブを実行する。
// 個々のサイトやジョブの失敗はログに記録して次へ進む。
// 列挙自体に失敗した場合のみエラーを返す。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	websites, err := s.websites.ListActive(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("スクレイプサイクルを開始します",
		slog.Int("website_count", len(websites)),
	)

	var (
		mu       sync.Mutex
		failures int
	)
	scrapeOne := func(w *model.Website) {
		if _, err := s.scraper.Scrape(ctx, w.ID); err != nil {
			s.logger.Error("Webサイトのスクレイプに失敗しました",
				slog.String("website_id", w.ID),
				slog.String("url", w.URL),
				slog.String("error", err.Error()),
			)
			mu.Lock()
			failures++
			mu.Unlock()
		}
	}

	if s.maxConcurrency == 1 {
		for _, w := range websites {
			if ctx.Err() != nil {
				break
			}
			scrapeOne(w)
		}
	} else {
		sem := make(chan struct{}, s.maxConcurrency)
		var wg sync.WaitGroup
		for _, w := range websites {
			wg.Add(1)
			sem <- struct{}{}

			go func(w *model.Website) {
				defer wg.Done()
				defer func() { <-sem }()
				scrapeOne(w)
			}(w)
		}
		wg.Wait()
	}

	s.logger.Info("スクレイプサイクルが完了しました",
		slog.Int("website_count", len(websites)),
		slog.Int("failure_count", failures),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	for _, job := range s.jobs {
		if err := job.Run(ctx); err != nil {
			s.logger.Error("日次ジョブの実行に失敗しました",
				slog.String("job", job.Name()),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}
