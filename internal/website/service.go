// Package website はWebサイト登録（レジストリ）のドメインロジックを提供する。
// 登録・更新・削除・有効切り替えと、記事一覧・手動スクレイプ・フィード情報の取得を扱う。
package website

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sitefeed/internal/model"
	"github.com/hitoshi/sitefeed/internal/repository"
)

// ArticleListLimit は記事一覧で返す最大件数。
const ArticleListLimit = 50

// Scraper はスクレイプパイプラインのインターフェース。
type Scraper interface {
	Scrape(ctx context.Context, websiteID string) (*model.ScrapeResult, error)
}

// URLValidator は登録URLの静的検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Input はWebサイトの登録・更新内容。
type Input struct {
	URL         string
	Title       string
	Description string
}

// FeedInfo はWebサイトに紐づく公開フィードの情報。
type FeedInfo struct {
	FeedID        string
	URL           string
	Title         string
	Description   string
	LastBuildDate time.Time
}

// Service はWebサイトレジストリのサービス層。
type Service struct {
	websiteRepo repository.WebsiteRepository
	feedRepo    repository.FeedRepository
	articleRepo repository.ArticleRepository
	scraper     Scraper
	validator   URLValidator
	feedURL     func(feedID string) string
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// feedURLはフィードIDから公開URLを組み立てる関数。
func NewService(
	websiteRepo repository.WebsiteRepository,
	feedRepo repository.FeedRepository,
	articleRepo repository.ArticleRepository,
	scraper Scraper,
	validator URLValidator,
	feedURL func(feedID string) string,
) *Service {
	return &Service{
		websiteRepo: websiteRepo,
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		scraper:     scraper,
		validator:   validator,
		feedURL:     feedURL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List はユーザーのWebサイト一覧を記事件数付きで返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.WebsiteWithCount, error) {
	if userID == "" {
		return []model.WebsiteWithCount{}, nil
	}
	list, err := s.websiteRepo.ListByUserWithCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Webサイト一覧の取得に失敗しました: %w", err)
	}
	if list == nil {
		list = []model.WebsiteWithCount{}
	}
	return list, nil
}

// Add はWebサイトを登録し、同一トランザクションでRSSフィードを作成する。
// 同一ユーザーが同じURLを登録済みの場合はDUPLICATE_WEBSITEエラーを返す。
func (s *Service) Add(ctx context.Context, userID string, in Input) (*model.Website, error) {
	in, err := s.normalize(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.websiteRepo.FindByUserAndURL(ctx, userID, in.URL)
	if err != nil {
		return nil, fmt.Errorf("Webサイトの重複確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateWebsiteError(in.URL)
	}

	now := s.now()
	website := &model.Website{
		ID:          uuid.New().String(),
		URL:         in.URL,
		Title:       in.Title,
		Description: in.Description,
		UserID:      userID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	feed := &model.Feed{
		ID:            uuid.New().String(),
		WebsiteID:     website.ID,
		FeedID:        model.FeedIDForWebsite(website.ID),
		Title:         website.Title,
		Description:   model.DefaultFeedDescription(website.Title, website.Description),
		Link:          website.URL,
		LastBuildDate: now,
	}

	if err := s.websiteRepo.CreateWithFeed(ctx, website, feed); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateWebsiteError(in.URL)
		}
		return nil, fmt.Errorf("Webサイトの登録に失敗しました: %w", err)
	}
	return website, nil
}

// Remove はWebサイトを削除する。記事、フィード、Webサイトの順に1トランザクションで削除する。
func (s *Service) Remove(ctx context.Context, userID, websiteID string) error {
	if _, err := s.owned(ctx, userID, websiteID); err != nil {
		return err
	}
	if err := s.websiteRepo.DeleteCascade(ctx, websiteID); err != nil {
		return fmt.Errorf("Webサイトの削除に失敗しました: %w", err)
	}
	return nil
}

// Toggle はWebサイトの有効フラグを反転し、更新後のWebサイトを返す。
func (s *Service) Toggle(ctx context.Context, userID, websiteID string) (*model.Website, error) {
	website, err := s.owned(ctx, userID, websiteID)
	if err != nil {
		return nil, err
	}
	website.IsActive = !website.IsActive
	if err := s.websiteRepo.SetActive(ctx, websiteID, website.IsActive); err != nil {
		return nil, fmt.Errorf("有効フラグの更新に失敗しました: %w", err)
	}
	return website, nil
}

// Update はWebサイトのURL・タイトル・説明を更新し、フィードのメタデータを同期する。
// URLが同一ユーザーの別Webサイトと衝突する場合はDUPLICATE_WEBSITEエラーを返す。
func (s *Service) Update(ctx context.Context, userID, websiteID string, in Input) (*model.Website, error) {
	website, err := s.owned(ctx, userID, websiteID)
	if err != nil {
		return nil, err
	}
	in, err = s.normalize(in)
	if err != nil {
		return nil, err
	}

	if in.URL != website.URL {
		other, err := s.websiteRepo.FindByUserAndURL(ctx, userID, in.URL)
		if err != nil {
			return nil, fmt.Errorf("Webサイトの重複確認に失敗しました: %w", err)
		}
		if other != nil && other.ID != websiteID {
			return nil, model.NewDuplicateWebsiteError(in.URL)
		}
	}

	now := s.now()
	website.URL = in.URL
	website.Title = in.Title
	website.Description = in.Description
	website.UpdatedAt = now

	feed := &model.Feed{
		WebsiteID:     websiteID,
		Title:         website.Title,
		Description:   model.DefaultFeedDescription(website.Title, website.Description),
		Link:          website.URL,
		LastBuildDate: now,
	}

	if err := s.websiteRepo.UpdateWithFeed(ctx, website, feed); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateWebsiteError(in.URL)
		}
		return nil, fmt.Errorf("Webサイトの更新に失敗しました: %w", err)
	}
	return website, nil
}

// Articles はWebサイトの最新記事を最大ArticleListLimit件返す。
// Webサイトが存在しない、または所有者でない場合は空の一覧を返す。
func (s *Service) Articles(ctx context.Context, userID, websiteID string) ([]*model.Article, error) {
	website, err := s.websiteRepo.FindByID(ctx, websiteID)
	if err != nil {
		return nil, fmt.Errorf("Webサイトの取得に失敗しました: %w", err)
	}
	if website == nil || website.UserID != userID {
		return []*model.Article{}, nil
	}

	articles, err := s.articleRepo.ListLatestByWebsite(ctx, websiteID, ArticleListLimit)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	if articles == nil {
		articles = []*model.Article{}
	}
	return articles, nil
}

// ScrapeNow は所有者の要求でスクレイプを即時実行し、結果を返す。
func (s *Service) ScrapeNow(ctx context.Context, userID, websiteID string) (*model.ScrapeResult, error) {
	if _, err := s.owned(ctx, userID, websiteID); err != nil {
		return nil, err
	}
	return s.scraper.Scrape(ctx, websiteID)
}

// FeedFor はWebサイトの公開フィード情報を返す。
func (s *Service) FeedFor(ctx context.Context, userID, websiteID string) (*FeedInfo, error) {
	if _, err := s.owned(ctx, userID, websiteID); err != nil {
		return nil, err
	}
	feed, err := s.feedRepo.FindByWebsiteID(ctx, websiteID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(model.FeedIDForWebsite(websiteID))
	}
	return &FeedInfo{
		FeedID:        feed.FeedID,
		URL:           s.feedURL(feed.FeedID),
		Title:         feed.Title,
		Description:   feed.Description,
		LastBuildDate: feed.LastBuildDate,
	}, nil
}

// owned はWebサイトを取得し、所有者であることを確認する。
func (s *Service) owned(ctx context.Context, userID, websiteID string) (*model.Website, error) {
	website, err := s.websiteRepo.FindByID(ctx, websiteID)
	if err != nil {
		return nil, fmt.Errorf("Webサイトの取得に失敗しました: %w", err)
	}
	if website == nil {
		return nil, model.NewWebsiteNotFoundError(websiteID)
	}
	if website.UserID != userID {
		return nil, model.NewForbiddenError()
	}
	return website, nil
}

// normalize は入力の前後空白を除去し、URLとタイトルを検証する。
func (s *Service) normalize(in Input) (Input, error) {
	in.URL = strings.TrimSpace(in.URL)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.URL == "" {
		return in, model.NewInvalidURLError("URLが空です")
	}
	if err := s.validator.ValidateURL(in.URL); err != nil {
		return in, model.NewInvalidURLError(err.Error())
	}
	if in.Title == "" {
		return in, model.NewInvalidRequestError("タイトルは必須です")
	}
	return in, nil
}
