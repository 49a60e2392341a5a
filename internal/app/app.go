package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/sitefeed/internal/auth"
	"github.com/hitoshi/sitefeed/internal/config"
	"github.com/hitoshi/sitefeed/internal/database"
	"github.com/hitoshi/sitefeed/internal/handler"
	"github.com/hitoshi/sitefeed/internal/llm"
	"github.com/hitoshi/sitefeed/internal/logger"
	"github.com/hitoshi/sitefeed/internal/metrics"
	"github.com/hitoshi/sitefeed/internal/middleware"
	"github.com/hitoshi/sitefeed/internal/repository"
	"github.com/hitoshi/sitefeed/internal/rss"
	"github.com/hitoshi/sitefeed/internal/scraper"
	"github.com/hitoshi/sitefeed/internal/security"
	"github.com/hitoshi/sitefeed/internal/website"
	"github.com/hitoshi/sitefeed/internal/worker/cleanup"
	"github.com/hitoshi/sitefeed/internal/worker/scrape"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップする
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandScrape:
		return runScrape(cfg, w, commandArgs(args))
	default:
		return runServe(cfg)
	}
}

// components はサブコマンド間で共有する依存関係の集合。
type components struct {
	db          *sql.DB
	logger      *slog.Logger
	registry    *prometheus.Registry
	metrics     *metrics.Collector
	guard       security.SSRFGuardService
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	websiteRepo repository.WebsiteRepository
	feedRepo    repository.FeedRepository
	articleRepo repository.ArticleRepository
	pipeline    *scraper.Pipeline
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// wire はリポジトリ・セキュリティ・LLMクライアント・スクレイプパイプラインを組み立てる。
func wire(cfg *config.Config, db *sql.DB) *components {
	log := slog.Default()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	c := &components{
		db:          db,
		logger:      log,
		registry:    registry,
		metrics:     collector,
		guard:       security.NewSSRFGuard(),
		userRepo:    repository.NewPostgresUserRepo(db),
		identRepo:   repository.NewPostgresIdentityRepo(db),
		sessionRepo: repository.NewPostgresSessionRepo(db),
		websiteRepo: repository.NewPostgresWebsiteRepo(db),
		feedRepo:    repository.NewPostgresFeedRepo(db),
		articleRepo: repository.NewPostgresArticleRepo(db),
	}

	// 補完APIは信頼済みの固定エンドポイントのため、SSRFガードを通さない
	completer := llm.NewClient(
		&http.Client{Timeout: cfg.LLMTimeout},
		llm.Config{
			BaseURL:   cfg.LLMBaseURL,
			APIKey:    cfg.LLMAPIKey,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
		},
		log,
	)

	c.pipeline = scraper.NewPipeline(
		c.websiteRepo,
		c.articleRepo,
		c.guard.NewSafeClient(cfg.ScrapeTimeout),
		completer,
		security.NewContentSanitizer(),
		collector,
		log,
		scraper.Options{
			MaxBodySize: cfg.ScrapeMaxSize,
			CompactHTML: cfg.ScrapeCompactHTML,
		},
	)
	return c
}

// newRouter はAPIサーバーのルーターを構築する。
// 戻り値のRateLimiterはシャットダウン時にStopすること。
func newRouter(cfg *config.Config, c *components) (http.Handler, *middleware.RateLimiter) {
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, c.userRepo, c.identRepo, c.sessionRepo,
		auth.ServiceConfig{
			SessionMaxAge: cfg.SessionMaxAge,
			AllowedEmails: cfg.AllowedEmails,
		},
		c.logger,
	)

	websiteService := website.NewService(
		c.websiteRepo, c.feedRepo, c.articleRepo,
		c.pipeline, c.guard, cfg.FeedURL,
	)

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitScrape),
	)

	deps := &handler.RouterDeps{
		Logger:            c.logger,
		SessionFinder:     c.sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		WebsiteService: websiteService,
		FeedRenderer:   rss.NewRenderer(c.feedRepo, c.articleRepo),
		Metrics:        c.metrics,

		DB:             c.db,
		MetricsHandler: metrics.Handler(c.registry),
	}

	return handler.NewRouter(deps), rateLimiter
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	c := wire(cfg, db)
	router, rateLimiter := newRouter(cfg, c)
	defer rateLimiter.Stop()

	// スクレイプはLLM呼び出しを含むため書き込みタイムアウトを長めに取る
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ScrapeTimeout + cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 毎日cfg.ScrapeDailyHour時（UTC）に有効な全Webサイトをスクレイプし、
// 続けて期限切れセッションを削除する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	c := wire(cfg, db)

	scheduler := scrape.NewScheduler(
		c.websiteRepo, c.pipeline, c.logger,
		cfg.ScrapeDailyHour, cfg.ScrapeMaxConcurrent,
	)
	scheduler.AddJob(cleanup.NewCleanupJob(db, c.logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Int("daily_hour_utc", cfg.ScrapeDailyHour),
		slog.Int("max_concurrent", cfg.ScrapeMaxConcurrent),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runScrape はスクレイプを1回だけ実行する。
// WebサイトIDを指定した場合は結果をJSONでwに書き出す。
// 省略した場合は有効な全Webサイトを対象に1サイクル実行する。
func runScrape(cfg *config.Config, w io.Writer, args []string) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	c := wire(cfg, db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(args) == 0 {
		scheduler := scrape.NewScheduler(
			c.websiteRepo, c.pipeline, c.logger,
			cfg.ScrapeDailyHour, cfg.ScrapeMaxConcurrent,
		)
		if err := scheduler.RunOnce(ctx); err != nil {
			return fmt.Errorf("scrape cycle failed: %w", err)
		}
		return nil
	}

	result, err := c.pipeline.Scrape(ctx, args[0])
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	return json.NewEncoder(w).Encode(result)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
