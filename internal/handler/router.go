package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sitefeed/internal/metrics"
	"github.com/hitoshi/sitefeed/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// Webサイト管理とRSS配信
	WebsiteService WebsiteServiceInterface
	FeedRenderer   FeedRenderer
	Metrics        metrics.MetricsCollector

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全体: Recovery → Logging → SecurityHeaders → CORS
// /api/websites: Session → RateLimit(General) → CSRF、手動スクレイプのみ RateLimit(Scrape) を追加
//
// /rss/{feedId}、/health、/metrics、/auth は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Logger)
	websiteHandler := NewWebsiteHandler(deps.WebsiteService, deps.Logger)
	rssHandler := NewRSSHandler(deps.FeedRenderer, deps.Metrics, deps.Logger)

	// --- 公開ルート ---
	r.Get("/rss/{feedId}", rssHandler.Serve)
	r.Get("/rss/", rssHandler.Serve)
	r.Get("/health", NewHealthHandler(deps.DB, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認証が必要なルート ---
	r.Route("/api/websites", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/", websiteHandler.List)
		r.Post("/", websiteHandler.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", websiteHandler.Update)
			r.Delete("/", websiteHandler.Delete)
			r.Post("/toggle", websiteHandler.Toggle)
			r.With(deps.RateLimiter.ScrapeMiddleware()).Post("/scrape", websiteHandler.Scrape)
			r.Get("/articles", websiteHandler.Articles)
			r.Get("/feed", websiteHandler.Feed)
		})
	})

	return r
}
