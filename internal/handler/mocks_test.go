package handler

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/sitefeed/internal/model"
	"github.com/hitoshi/sitefeed/internal/website"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, model.NewUnauthorizedError()
}

type mockWebsiteService struct {
	listFn      func(ctx context.Context, userID string) ([]model.WebsiteWithCount, error)
	addFn       func(ctx context.Context, userID string, in website.Input) (*model.Website, error)
	updateFn    func(ctx context.Context, userID, websiteID string, in website.Input) (*model.Website, error)
	removeFn    func(ctx context.Context, userID, websiteID string) error
	toggleFn    func(ctx context.Context, userID, websiteID string) (*model.Website, error)
	articlesFn  func(ctx context.Context, userID, websiteID string) ([]*model.Article, error)
	scrapeNowFn func(ctx context.Context, userID, websiteID string) (*model.ScrapeResult, error)
	feedForFn   func(ctx context.Context, userID, websiteID string) (*website.FeedInfo, error)
}

func (m *mockWebsiteService) List(ctx context.Context, userID string) ([]model.WebsiteWithCount, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []model.WebsiteWithCount{}, nil
}

func (m *mockWebsiteService) Add(ctx context.Context, userID string, in website.Input) (*model.Website, error) {
	return m.addFn(ctx, userID, in)
}

func (m *mockWebsiteService) Update(ctx context.Context, userID, websiteID string, in website.Input) (*model.Website, error) {
	return m.updateFn(ctx, userID, websiteID, in)
}

func (m *mockWebsiteService) Remove(ctx context.Context, userID, websiteID string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, userID, websiteID)
	}
	return nil
}

func (m *mockWebsiteService) Toggle(ctx context.Context, userID, websiteID string) (*model.Website, error) {
	return m.toggleFn(ctx, userID, websiteID)
}

func (m *mockWebsiteService) Articles(ctx context.Context, userID, websiteID string) ([]*model.Article, error) {
	if m.articlesFn != nil {
		return m.articlesFn(ctx, userID, websiteID)
	}
	return []*model.Article{}, nil
}

func (m *mockWebsiteService) ScrapeNow(ctx context.Context, userID, websiteID string) (*model.ScrapeResult, error) {
	return m.scrapeNowFn(ctx, userID, websiteID)
}

func (m *mockWebsiteService) FeedFor(ctx context.Context, userID, websiteID string) (*website.FeedInfo, error) {
	return m.feedForFn(ctx, userID, websiteID)
}

type mockRenderer struct {
	renderFn func(ctx context.Context, feedID string) ([]byte, error)
}

func (m *mockRenderer) Render(ctx context.Context, feedID string) ([]byte, error) {
	return m.renderFn(ctx, feedID)
}

// mockMetrics はフィード配信結果のみを記録する。
type mockMetrics struct {
	mu      sync.Mutex
	renders []string
}

func (m *mockMetrics) RecordScrapeSuccess(string)          {}
func (m *mockMetrics) RecordScrapeFailure(string, string)  {}
func (m *mockMetrics) RecordFetchStatus(int)               {}
func (m *mockMetrics) RecordScrapeLatency(d time.Duration) {}
func (m *mockMetrics) RecordArticlesUpserted(int, int)     {}

func (m *mockMetrics) RecordFeedRender(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders = append(m.renders, result)
}

type mockSessionFinder struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.sessions[id], nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func discardLogger() *slog.Logger {
	return newTestLogger(&bytes.Buffer{})
}
