package app

import (
	"database/sql"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/healthtrends/internal/config"
	"github.com/hitoshi/healthtrends/internal/feed"
	"github.com/hitoshi/healthtrends/internal/gemini"
	"github.com/hitoshi/healthtrends/internal/handler"
	"github.com/hitoshi/healthtrends/internal/metrics"
	"github.com/hitoshi/healthtrends/internal/middleware"
	"github.com/hitoshi/healthtrends/internal/repository"
	"github.com/hitoshi/healthtrends/internal/security"
	"github.com/hitoshi/healthtrends/internal/trend"
	"github.com/hitoshi/healthtrends/internal/worker/cleanup"
	"github.com/hitoshi/healthtrends/internal/worker/ingest"
)

// metricsSet はプロセス単位のメトリクスレジストリとコレクター。
type metricsSet struct {
	registry  *prometheus.Registry
	collector *metrics.Collector
}

// newMetricsSet はアプリケーションのメトリクスに加え、Goランタイムとプロセスのメトリクスも登録したレジストリを生成する。
func newMetricsSet() *metricsSet {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &metricsSet{registry: reg, collector: metrics.NewCollector(reg)}
}

// buildPipeline は設定とDB接続から取り込みパイプラインを組み立てる。
func buildPipeline(cfg *config.Config, db *sql.DB, recorder metrics.Recorder, logger *slog.Logger) *ingest.Pipeline {
	// 1. フェッチとパース
	ssrfGuard := security.NewSSRFGuard()
	fetcher := feed.NewFetcher(ssrfGuard, recorder, logger, feed.FetcherConfig{
		Timeout:       cfg.FetchTimeout,
		MaxBodySize:   cfg.FetchMaxSize,
		MaxConcurrent: cfg.FetchMaxConcurrent,
	})
	parser := feed.NewParser(cfg.FeedParser)

	// 2. 生成モデル
	model := gemini.NewClient(gemini.ClientConfig{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.GeminiModel,
		Endpoint:    cfg.GeminiEndpoint,
		Timeout:     cfg.GeminiTimeout,
		MinInterval: cfg.GeminiMinInterval,
	}, logger)

	// 3. 選別・サンプリング・要約
	verifier := trend.NewVerifier(model, recorder, logger)
	sampler := trend.NewSampler(cfg.ArticleQuota, cfg.PadToQuota, nil)
	summarizer := trend.NewSummarizer(model, recorder, logger)

	// 4. 永続化
	trendRepo := repository.NewPostgresTrendRepo(db)
	retention := cleanup.NewRetentionJob(trendRepo, cfg.RetentionCap, recorder, logger)

	var locker repository.RunLocker
	if cfg.PipelineLock == config.LockAdvisory {
		locker = repository.NewPostgresAdvisoryLock(db, repository.DefaultLockKey, logger)
	}

	return ingest.NewPipeline(ingest.Deps{
		Fetcher:    fetcher,
		Parser:     parser,
		Verifier:   verifier,
		Sampler:    sampler,
		Summarizer: summarizer,
		Store:      trendRepo,
		Pruner:     retention,
		Locker:     locker,
		Recorder:   recorder,
		Logger:     logger,
	}, cfg.Sources, cfg.MaxDiseaseArticles)
}

// buildRouterDeps はHTTPルーターの依存関係を組み立てる。
// TriggerLimiterは呼び出し側でStopすること。
func buildRouterDeps(cfg *config.Config, db *sql.DB, runner handler.PipelineRunner, m *metricsSet, logger *slog.Logger) *handler.RouterDeps {
	return &handler.RouterDeps{
		Logger:            logger,
		Recorder:          m.collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TriggerLimiter:    middleware.NewRateLimiter(middleware.PerMinute(cfg.TriggerRatePerMin), logger),

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(m.registry),

		Runner:     runner,
		CronSecret: cfg.CronSecret,

		Trends:       repository.NewPostgresTrendRepo(db),
		RetentionCap: cfg.RetentionCap,
	}
}
