package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sitefeed/internal/metrics"
	"github.com/hitoshi/sitefeed/internal/middleware"
	"github.com/hitoshi/sitefeed/internal/model"
	"github.com/hitoshi/sitefeed/internal/rss"
)

const (
	rssContentType  = "application/rss+xml; charset=utf-8"
	rssCacheControl = "public, max-age=3600"
)

// FeedRenderer はRSS文書を生成するインターフェース。
type FeedRenderer interface {
	Render(ctx context.Context, feedID string) ([]byte, error)
}

// RSSHandler は公開RSSフィードの配信ハンドラー。認証は不要。
type RSSHandler struct {
	renderer FeedRenderer
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewRSSHandler はRSSHandlerを生成する。
func NewRSSHandler(renderer FeedRenderer, m metrics.MetricsCollector, logger *slog.Logger) *RSSHandler {
	return &RSSHandler{renderer: renderer, metrics: m, logger: logger}
}

// Serve はフィードIDに対応するRSS 2.0文書を返す。
// フィードIDが空なら400、存在しなければ404を返す。
// GET /rss/{feedId}
func (h *RSSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	feedID := strings.TrimSpace(chi.URLParam(r, "feedId"))
	if feedID == "" {
		h.metrics.RecordFeedRender(metrics.RenderNotFound)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("フィードIDが指定されていません"))
		return
	}

	body, err := h.renderer.Render(r.Context(), feedID)
	if errors.Is(err, rss.ErrFeedNotFound) {
		h.metrics.RecordFeedRender(metrics.RenderNotFound)
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewFeedNotFoundError(feedID))
		return
	}
	if err != nil {
		h.metrics.RecordFeedRender(metrics.RenderError)
		h.logger.Error("RSSフィードの生成に失敗しました",
			slog.String("feed_id", feedID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	h.metrics.RecordFeedRender(metrics.RenderOK)
	w.Header().Set("Content-Type", rssContentType)
	w.Header().Set("Cache-Control", rssCacheControl)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
