package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/healthtrends/internal/metrics"
	"github.com/hitoshi/healthtrends/internal/middleware"
)

// TriggerPath はパイプライン起動エンドポイントのパス。
const TriggerPath = "/daily-health-scraper"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Recorder          metrics.Recorder
	CORSAllowedOrigin string
	TriggerLimiter    *middleware.RateLimiter // nilの場合はレート制限しない

	// ヘルスチェック・メトリクス
	HealthChecker  Pinger
	MetricsHandler http.Handler

	// トリガー
	Runner     PipelineRunner
	CronSecret string

	// 読み取りAPI
	Trends       TrendLister
	RetentionCap int
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders
//
// トリガーにはクライアントIPごとのレート制限、読み取りAPIにはCORSを追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Recorder))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	healthHandler := NewHealthHandler(deps.HealthChecker)
	triggerHandler := NewTriggerHandler(deps.Runner, deps.CronSecret, deps.Logger)
	trendHandler := NewTrendHandler(deps.Trends, deps.RetentionCap, deps.Logger)

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// トリガー（GETとPOSTの両方を受け付ける）
	r.Group(func(r chi.Router) {
		if deps.TriggerLimiter != nil {
			r.Use(deps.TriggerLimiter.Middleware())
		}
		r.Get(TriggerPath, triggerHandler.Trigger)
		r.Post(TriggerPath, triggerHandler.Trigger)
	})

	// 読み取りAPI
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Get("/trends", trendHandler.ListTrends)
		r.Options("/trends", func(w http.ResponseWriter, r *http.Request) {})
	})

	return r
}
