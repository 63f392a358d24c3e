// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/epimap/internal/metrics"
	"github.com/hitoshi/epimap/internal/middleware"
)

// Route はルートテーブルの1エントリを表す。
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc

	// DevOnly のルートは--dev起動時のみバインドされる。
	DevOnly bool
}

// allowedMethods はルートテーブルで受け付けるHTTPメソッド。
var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger    *slog.Logger
	Collector metrics.MetricsCollector

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// リソース
	OutbreakRepo  OutbreakRepoInterface
	SymptomRepo   SymptomRepoInterface
	NewsRepo      NewsRepoInterface
	Predictions   PredictionQuerier
	Sanitizer     TextSanitizer
	HealthChecker func(ctx context.Context) error
	Gatherer      http.Handler

	// フロントエンド静的アセット
	Static http.Handler

	// Dev が真の場合、DevOnlyルートもバインドする。
	Dev bool
}

// Router はルートテーブル適用済みのHTTPルーター。
// バインド済みルートの一覧を保持する。
type Router struct {
	mux   *chi.Mux
	bound []string
}

// ServeHTTP はhttp.Handlerを実装する。
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// BoundRoutes はバインド済みルートの一覧（"GET /path" 形式）を返す。
func (rt *Router) BoundRoutes() []string {
	return append([]string(nil), rt.bound...)
}

// NewRouter は静的ルートテーブルとミドルウェアチェーンを構成したRouterを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit(General)
//
// テーブルの適用はリスナー起動前に完了する。不正なエントリはスキップして
// 起動を継続する。
func NewRouter(deps *RouterDeps) *Router {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.GeneralMiddleware())
	}

	rt := &Router{mux: r}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Logger, deps.Collector)
	outbreakHandler := NewOutbreakHandler(deps.OutbreakRepo, deps.Logger)
	symptomHandler := NewSymptomHandler(deps.SymptomRepo, deps.Sanitizer, deps.Logger, deps.Collector)
	predictionHandler := NewPredictionHandler(deps.Predictions, deps.Collector)
	newsHandler := NewNewsHandler(deps.NewsRepo, deps.Logger)
	healthHandler := NewHealthHandler(deps.HealthChecker)
	debugHandler := NewDebugHandler(deps.AuthService)

	// 症状レポートは専用の厳しいレート制限を重ねる
	reportSymptom := symptomHandler.Report
	if deps.RateLimiter != nil {
		wrapped := deps.RateLimiter.ReportMiddleware()(http.HandlerFunc(reportSymptom))
		reportSymptom = wrapped.ServeHTTP
	}

	table := []Route{
		{Method: http.MethodGet, Pattern: "/auth/login", Handler: authHandler.Login},
		{Method: http.MethodGet, Pattern: "/auth/callback", Handler: authHandler.Callback},
		{Method: http.MethodGet, Pattern: "/auth/logout", Handler: authHandler.Logout},
		{Method: http.MethodGet, Pattern: "/auth/info", Handler: authHandler.Info},
		{Method: http.MethodGet, Pattern: "/api/outbreaks", Handler: outbreakHandler.List},
		{Method: http.MethodPost, Pattern: "/api/outbreaks", Handler: outbreakHandler.Upsert},
		{Method: http.MethodPost, Pattern: "/symptoms", Handler: reportSymptom},
		{Method: http.MethodGet, Pattern: "/predictions", Handler: predictionHandler.Query},
		{Method: http.MethodGet, Pattern: "/api/news", Handler: newsHandler.List},
		{Method: http.MethodGet, Pattern: "/health", Handler: healthHandler.Check},
		{Method: http.MethodGet, Pattern: "/api/debug/session", Handler: debugHandler.Session, DevOnly: true},
	}
	if deps.Gatherer != nil {
		table = append(table, Route{
			Method:  http.MethodGet,
			Pattern: "/metrics",
			Handler: deps.Gatherer.ServeHTTP,
		})
	}

	rt.applyRoutes(r, table, deps.Dev, deps.Logger)

	if deps.Static != nil {
		r.Handle("/*", deps.Static)
	}

	return rt
}

// applyRoutes はルートテーブルをルーターに適用する。
// DevOnlyルートは--dev起動時のみバインドし、1ルートごとに1行ログを出す。
// 不正なエントリは診断ログを出してスキップする。
func (rt *Router) applyRoutes(r chi.Router, table []Route, dev bool, logger *slog.Logger) {
	for _, route := range table {
		if route.Handler == nil {
			logger.Warn("skipping route with nil handler",
				slog.String("method", route.Method),
				slog.String("pattern", route.Pattern),
			)
			continue
		}
		if !allowedMethods[route.Method] {
			logger.Warn("skipping route with unsupported method",
				slog.String("method", route.Method),
				slog.String("pattern", route.Pattern),
			)
			continue
		}
		if route.DevOnly && !dev {
			logger.Info("skipping dev-only route",
				slog.String("method", route.Method),
				slog.String("pattern", route.Pattern),
			)
			continue
		}

		r.Method(route.Method, route.Pattern, route.Handler)
		rt.bound = append(rt.bound, route.Method+" "+route.Pattern)
		logger.Info("registered route",
			slog.String("method", route.Method),
			slog.String("pattern", route.Pattern),
		)
	}
}
