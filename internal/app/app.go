package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/hitoshi/epimap/internal/auth"
	"github.com/hitoshi/epimap/internal/config"
	"github.com/hitoshi/epimap/internal/database"
	"github.com/hitoshi/epimap/internal/handler"
	"github.com/hitoshi/epimap/internal/logger"
	"github.com/hitoshi/epimap/internal/metrics"
	"github.com/hitoshi/epimap/internal/middleware"
	"github.com/hitoshi/epimap/internal/model"
	"github.com/hitoshi/epimap/internal/news"
	"github.com/hitoshi/epimap/internal/prediction"
	"github.com/hitoshi/epimap/internal/repository"
	"github.com/hitoshi/epimap/internal/security"
	"github.com/hitoshi/epimap/internal/session"
	"github.com/hitoshi/epimap/internal/worker/newsfetch"
	"github.com/hitoshi/epimap/web"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	opts := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if opts.Command == CommandHealthcheck {
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
		slog.String("command", string(opts.Command)),
		slog.String("port", cfg.ServerPort),
		slog.String("backend_url", cfg.BackendURL),
		slog.Bool("dev", opts.Dev),
	)

	switch opts.Command {
	case CommandServe:
		return runServe(cfg, opts.Dev)
	case CommandWorker:
		return runWorker(cfg)
	default:
		return runServe(cfg, opts.Dev)
	}
}

// runServe はAPIサーバーモードで起動する。
// MongoDB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, dev bool) error {
	// 1. DB接続
	client, err := database.Open(cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("failed to open mongodb connection: %w", err)
	}
	defer func() {
		if err := database.Close(client); err != nil {
			slog.Error("mongodb disconnect failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("mongodb connection established")

	db := client.Database(cfg.MongoDatabase)

	// 2. リポジトリの初期化
	outbreakRepo := repository.NewMongoOutbreakRepo(db)
	symptomRepo := repository.NewMongoSymptomRepo(db)
	newsRepo := repository.NewMongoNewsRepo(db)

	// 3. セキュリティサービスの初期化
	guard := security.NewURLGuard()
	sanitizer := security.NewSanitizer()

	// 4. セッションストアと認証サービスの初期化
	store := session.NewStore(cfg.SessionTTL)
	defer store.Stop()

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleOAuthID,
		ClientSecret: cfg.GoogleOAuthSecret,
		RedirectURL:  cfg.BackendURL + "/auth/callback",
	})
	authService := auth.NewService(oauthProvider, store)

	// 5. 予測スナップショットの読み込み
	predictionSvc := prediction.NewService(loadPredictions(cfg, guard))
	slog.Info("prediction snapshot loaded", slog.Int("points", predictionSvc.Len()))

	// 6. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 7. レートリミッターの初期化
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralPerMinute = cfg.RateLimitGeneral
	}
	if cfg.RateLimitReport > 0 {
		rateLimiterCfg.ReportPerMinute = cfg.RateLimitReport
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg, slog.Default())
	defer rateLimiter.Stop()

	// 8. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:    slog.Default(),
		Collector: collector,

		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			FrontendURL:  cfg.FrontendURL,
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
			SessionTTL:   cfg.SessionTTL,
		},

		OutbreakRepo: outbreakRepo,
		SymptomRepo:  symptomRepo,
		NewsRepo:     newsRepo,
		Predictions:  predictionSvc,
		Sanitizer:    sanitizer,

		HealthChecker: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		Gatherer: metrics.Handler(registry),
		Static:   http.FileServerFS(web.Assets),

		Dev: dev,
	}

	router := handler.NewRouter(deps)

	for _, route := range router.BoundRoutes() {
		slog.Debug("route bound", slog.String("route", route))
	}

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はニュース巡回ワーカーモードで起動する。
// MongoDB接続を開き、フィード巡回スケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if len(cfg.NewsFeedURLs) == 0 {
		return fmt.Errorf("NEWS_FEED_URLS is empty: worker has nothing to fetch")
	}

	// 1. DB接続
	client, err := database.Open(cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("failed to open mongodb connection: %w", err)
	}
	defer func() {
		if err := database.Close(client); err != nil {
			slog.Error("mongodb disconnect failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("mongodb connection established (worker)")

	db := client.Database(cfg.MongoDatabase)
	newsRepo := repository.NewMongoNewsRepo(db)

	// 2. セキュリティサービスの初期化
	guard := security.NewURLGuard()
	sanitizer := security.NewSanitizer()

	// 3. フェッチャーの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	detector := news.NewDetector(guard)

	fetcher := newsfetch.NewFetcher(
		newsRepo, detector, guard, sanitizer, collector,
		slog.Default(), cfg.NewsFetchInterval, cfg.NewsFetchTimeout, cfg.NewsMaxSize,
	)

	// 4. スケジューラの初期化
	scheduler := newsfetch.NewScheduler(
		cfg.NewsFeedURLs, fetcher, slog.Default(), cfg.NewsMaxConcurrent,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("sources", len(cfg.NewsFeedURLs)),
		slog.Duration("fetch_interval", cfg.NewsFetchInterval),
		slog.Int("max_concurrent", cfg.NewsMaxConcurrent),
	)

	// フィード巡回スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.NewsFetchInterval)

	slog.Info("worker stopped gracefully")
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

// loadPredictions は予測スナップショットを読み込む。
// PREDICTIONS_URLが設定されていればリモート取得を優先し、失敗時は
// ローカルファイルへフォールバックする。どちらも失敗した場合は
// 空のスナップショットで起動を継続する。
func loadPredictions(cfg *config.Config, guard security.URLGuardService) []model.PredictionPoint {
	if cfg.PredictionsURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		points, err := prediction.LoadURL(ctx, cfg.PredictionsURL, guard)
		if err == nil {
			return points
		}
		slog.Warn("remote predictions load failed, falling back to local file",
			slog.String("url", cfg.PredictionsURL),
			slog.String("error", err.Error()),
		)
	}

	points, err := prediction.LoadFile(cfg.PredictionsPath)
	if err != nil {
		slog.Error("predictions file load failed, starting with empty snapshot",
			slog.String("path", cfg.PredictionsPath),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return points
}
