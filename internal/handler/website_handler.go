package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sitefeed/internal/middleware"
	"github.com/hitoshi/sitefeed/internal/model"
	"github.com/hitoshi/sitefeed/internal/website"
)

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 64 << 10

// WebsiteServiceInterface はWebサイトハンドラーが必要とするサービスインターフェース。
type WebsiteServiceInterface interface {
	List(ctx context.Context, userID string) ([]model.WebsiteWithCount, error)
	Add(ctx context.Context, userID string, in website.Input) (*model.Website, error)
	Update(ctx context.Context, userID, websiteID string, in website.Input) (*model.Website, error)
	Remove(ctx context.Context, userID, websiteID string) error
	Toggle(ctx context.Context, userID, websiteID string) (*model.Website, error)
	Articles(ctx context.Context, userID, websiteID string) ([]*model.Article, error)
	ScrapeNow(ctx context.Context, userID, websiteID string) (*model.ScrapeResult, error)
	FeedFor(ctx context.Context, userID, websiteID string) (*website.FeedInfo, error)
}

// WebsiteHandler はWebサイト管理APIのHTTPハンドラー。
type WebsiteHandler struct {
	service WebsiteServiceInterface
	logger  *slog.Logger
}

// NewWebsiteHandler はWebsiteHandlerを生成する。
func NewWebsiteHandler(service WebsiteServiceInterface, logger *slog.Logger) *WebsiteHandler {
	return &WebsiteHandler{service: service, logger: logger}
}

type websiteRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type websiteResponse struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	IsActive      bool       `json:"is_active"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ArticlesCount *int       `json:"articles_count,omitempty"`
}

type articleResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description *string   `json:"description"`
	PubDate     time.Time `json:"pub_date"`
	GUID        string    `json:"guid"`
}

type feedInfoResponse struct {
	FeedID        string    `json:"feed_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	LastBuildDate time.Time `json:"last_build_date"`
}

// scrapeFailureResponse は手動スクレイプ失敗時のレスポンス。
// 統一エラーフォーマットに success=false を加えたもの。
type scrapeFailureResponse struct {
	Success bool `json:"success"`
	middleware.ErrorResponseBody
	Error string `json:"error"`
}

// List はログインユーザーのWebサイト一覧を返す。
// GET /api/websites
func (h *WebsiteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		middleware.WriteServiceError(w, h.logger, err)
		return
	}

	resp := make([]websiteResponse, 0, len(list))
	for i := range list {
		wr := toWebsiteResponse(&list[i].Website)
		count := list[i].ArticlesCount
		wr.ArticlesCount = &count
		resp = append(resp, wr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はWebサイトを登録する。
// POST /api/websites
func (h *WebsiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	req, ok := decodeWebsiteRequest(w, r)
	if !ok {
		return
	}

	site, err := h.service.Add(r.Context(), userID, website.Input(req))
	if err != nil {
		middleware.WriteServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWebsiteResponse(site))
}

// Update はWebサイトのURL・タイトル・説明を更新する。
// PATCH /api/websites/{id}
func (h *WebsiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	req, ok := decodeWebsiteRequest(w, r)
	if !ok {
		return
	}

	site, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), website.Input(req))
	if err != nil {
		middleware.WriteServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWebsiteResponse(site))
}

// Delete はWebサイトとそのフィード・記事を削除する。
// DELETE /api/websites/{id}
func (h *WebsiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.Remove(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle はWebサイトの有効・無効を切り替える。
// POST /api/websites/{id}/toggle
func (h *WebsiteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	site, err := h.service.Toggle(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWebsiteResponse(site))
}

// Articles はWebサイトの最新記事一覧を返す。
// GET /api/websites/{id}/articles
func (h *WebsiteHandler) Articles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	articles, err := h.service.Articles(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, h.logger, err)
		return
	}

	resp := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		resp = append(resp, articleResponse{
			ID:          a.ID,
			Title:       a.Title,
			Link:        a.Link,
			Description: a.Description,
			PubDate:     a.PubDate,
			GUID:        a.GUID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Scrape は手動スクレイプを実行し、結果を返す。
// 取得・抽出の失敗は success=false とエラー内容を含むレスポンスで返す。
// POST /api/websites/{id}/scrape
func (h *WebsiteHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	result, err := h.service.ScrapeNow(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Category == "scrape" {
			writeJSON(w, middleware.StatusForCode(apiErr.Code), scrapeFailureResponse{
				Success: false,
				ErrorResponseBody: middleware.ErrorResponseBody{
					Code:     apiErr.Code,
					Message:  apiErr.Message,
					Category: apiErr.Category,
					Action:   apiErr.Action,
				},
				Error: apiErr.Message,
			})
			return
		}
		middleware.WriteServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Feed はWebサイトの公開フィードIDとURLを返す。
// GET /api/websites/{id}/feed
func (h *WebsiteHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	info, err := h.service.FeedFor(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, feedInfoResponse(*info))
}

func (h *WebsiteHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

func decodeWebsiteRequest(w http.ResponseWriter, r *http.Request) (websiteRequest, bool) {
	var req websiteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return req, false
	}
	return req, true
}

func toWebsiteResponse(site *model.Website) websiteResponse {
	return websiteResponse{
		ID:            site.ID,
		URL:           site.URL,
		Title:         site.Title,
		Description:   site.Description,
		IsActive:      site.IsActive,
		LastCheckedAt: site.LastCheckedAt,
		CreatedAt:     site.CreatedAt,
		UpdatedAt:     site.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
