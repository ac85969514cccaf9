// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ラベル値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	// VerifyAccepted はモデルが実在の疾患関連記事と判定したことを示す。
	VerifyAccepted = "accepted"
	// VerifyRejected はモデルが対象外と判定したことを示す。
	VerifyRejected = "rejected"
	// VerifyError は検証呼び出し自体が失敗したことを示す（fail closed）。
	VerifyError = "error"
)

// Recorder はメトリクス記録のインターフェース。
// フェッチャー、フィルタ、パイプライン、HTTPミドルウェアから利用する。
type Recorder interface {
	RecordPipelineRun(result string, duration time.Duration)
	RecordFeedFetch(list, result string, duration time.Duration)
	RecordArticlesParsed(list string, count int)
	RecordDiseaseVerification(result string, count int)
	RecordSummaryFallback(count int)
	RecordTrendsUpserted(count int)
	RecordTrendsPruned(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	feedFetch        *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	articlesParsed   *prometheus.CounterVec
	diseaseVerify    *prometheus.CounterVec
	summaryFallback  prometheus.Counter
	trendsUpserted   prometheus.Counter
	trendsPruned     prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrends_pipeline_runs_total",
			Help: "パイプライン実行の結果別合計数",
		}, []string{"result"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthtrends_pipeline_duration_seconds",
			Help:    "パイプライン1回の所要時間（秒）",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		feedFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrends_feed_fetch_total",
			Help: "フィードリスト・結果別のフェッチ数",
		}, []string{"list", "result"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthtrends_feed_fetch_latency_seconds",
			Help:    "フィードフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		articlesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrends_articles_parsed_total",
			Help: "フィードリスト別のパース済み記事数",
		}, []string{"list"}),
		diseaseVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrends_disease_verification_total",
			Help: "疾患関連記事の検証結果別件数",
		}, []string{"result"}),
		summaryFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthtrends_summary_fallback_total",
			Help: "要約・分類にフォールバック値を使用した記事数",
		}),
		trendsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthtrends_trends_upserted_total",
			Help: "アップサートされたトレンド記事の合計数",
		}),
		trendsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthtrends_trends_pruned_total",
			Help: "保持上限超過で削除されたトレンド記事の合計数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrends_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.pipelineRuns,
		c.pipelineDuration,
		c.feedFetch,
		c.fetchLatency,
		c.articlesParsed,
		c.diseaseVerify,
		c.summaryFallback,
		c.trendsUpserted,
		c.trendsPruned,
		c.httpRequests,
	)

	return c
}

// RecordPipelineRun はパイプライン実行の結果と所要時間を記録する。
func (c *Collector) RecordPipelineRun(result string, duration time.Duration) {
	c.pipelineRuns.WithLabelValues(result).Inc()
	c.pipelineDuration.Observe(duration.Seconds())
}

// RecordFeedFetch はフィードフェッチの結果とレイテンシを記録する。
func (c *Collector) RecordFeedFetch(list, result string, duration time.Duration) {
	c.feedFetch.WithLabelValues(list, result).Inc()
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordArticlesParsed はパースされた記事数を記録する。
func (c *Collector) RecordArticlesParsed(list string, count int) {
	c.articlesParsed.WithLabelValues(list).Add(float64(count))
}

// RecordDiseaseVerification は疾患関連記事の検証結果を記録する。
func (c *Collector) RecordDiseaseVerification(result string, count int) {
	c.diseaseVerify.WithLabelValues(result).Add(float64(count))
}

// RecordSummaryFallback はフォールバック値を使用した記事数を記録する。
func (c *Collector) RecordSummaryFallback(count int) {
	c.summaryFallback.Add(float64(count))
}

// RecordTrendsUpserted はアップサートされた記事数を記録する。
func (c *Collector) RecordTrendsUpserted(count int) {
	c.trendsUpserted.Add(float64(count))
}

// RecordTrendsPruned は削除された記事数を記録する。
func (c *Collector) RecordTrendsPruned(count int) {
	c.trendsPruned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないRecorder。テストやメトリクス無効時に使用する。
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordPipelineRun(string, time.Duration) {}
func (Nop) RecordFeedFetch(string, string, time.Duration) {}
func (Nop) RecordArticlesParsed(string, int) {}
func (Nop) RecordDiseaseVerification(string, int) {}
func (Nop) RecordSummaryFallback(int) {}
func (Nop) RecordTrendsUpserted(int) {}
func (Nop) RecordTrendsPruned(int) {}
func (Nop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
