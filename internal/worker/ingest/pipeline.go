// Package ingest は日次のトレンド記事取り込みパイプラインを提供する。
// フェッチ、パース、疾患関連記事の選別、サンプリング、要約付与、保存、
// 保持件数の調整を1回の実行として順に行う。
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/healthtrends/internal/config"
	"github.com/hitoshi/healthtrends/internal/feed"
	"github.com/hitoshi/healthtrends/internal/metrics"
	"github.com/hitoshi/healthtrends/internal/model"
	"github.com/hitoshi/healthtrends/internal/repository"
	"github.com/hitoshi/healthtrends/internal/trend"
)

// ソースリスト名。ログとメトリクスのラベルに使う。
const (
	ListLifestyle = "lifestyle"
	ListDisease   = "disease"
)

// ErrRunInProgress は別の実行が進行中のため今回の実行を拒否したことを示す。
var ErrRunInProgress = errors.New("another pipeline run is in progress")

// FeedFetcher はソースリストを一括取得するインターフェース。
type FeedFetcher interface {
	FetchAll(ctx context.Context, list string, sources []string) map[string]string
}

// DiseaseVerifier は疾患関連の候補記事をモデルで検証するインターフェース。
type DiseaseVerifier interface {
	Verify(ctx context.Context, candidates []model.Article) ([]model.Article, error)
}

// ArticleSampler は記事の間引きと出力件数の調整を行うインターフェース。
type ArticleSampler interface {
	CapDisease(articles []model.Article, limit int) []model.Article
	Sample(lifestyle, disease []model.Article) []model.Article
}

// ArticleEnricher はカテゴリと要約を付与するインターフェース。
type ArticleEnricher interface {
	Enrich(ctx context.Context, batch []model.Article) []trend.EnrichResult
}

// TrendWriter は記事をUPSERTするインターフェース。
type TrendWriter interface {
	UpsertBatch(ctx context.Context, rows []model.EnrichedArticle) (int, error)
}

// Pruner は保持上限を超えた記事を削除するインターフェース。
type Pruner interface {
	Run(ctx context.Context) (int, error)
}

// Result は1回の実行結果。
type Result struct {
	RunID             string
	Written           int // 保存したバッチの件数（パディングによる重複を含む）
	Upserted          int // 実際に書き込んだリンク数
	DiseaseVerified   int
	LifestyleParsed   int
	DiseaseCandidates int
	Fallbacks         int
	Pruned            int
	Duration          time.Duration
}

// Message はトリガーの成功レスポンスに使う要約文を返す。
func (r *Result) Message() string {
	return fmt.Sprintf("%d new articles (incl. %d verified disease-related).", r.Written, r.DiseaseVerified)
}

// Deps はPipelineの依存コンポーネント。
// Lockerがnilの場合は同時実行を制御しない。
type Deps struct {
	Fetcher    FeedFetcher
	Parser     feed.Parser
	Verifier   DiseaseVerifier
	Sampler    ArticleSampler
	Summarizer ArticleEnricher
	Store      TrendWriter
	Pruner     Pruner
	Locker     repository.RunLocker
	Recorder   metrics.Recorder
	Logger     *slog.Logger
}

// Pipeline は取り込み処理1回分を順に実行する。
// 保存と削除の失敗以外は縮退して続行する。
type Pipeline struct {
	deps               Deps
	sources            config.Sources
	maxDiseaseArticles int
}

// NewPipeline はPipelineの新しいインスタンスを生成する。
func NewPipeline(deps Deps, sources config.Sources, maxDiseaseArticles int) *Pipeline {
	if deps.Recorder == nil {
		deps.Recorder = metrics.Nop{}
	}
	return &Pipeline{
		deps:               deps,
		sources:            sources,
		maxDiseaseArticles: maxDiseaseArticles,
	}
}

// Run はパイプラインを1回実行する。
// 保存または削除に失敗した場合はエラーを返す。
// ロックが他の実行に保持されている場合はErrRunInProgressを返し、何も書き込まない。
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.New().String()}
	logger := p.deps.Logger.With(slog.String("run_id", res.RunID))

	if p.deps.Locker != nil {
		release, err := p.deps.Locker.TryLock(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrLockHeld) {
				logger.Warn("別の実行が進行中のため、今回の実行をスキップします")
				return nil, fmt.Errorf("%w: %w", ErrRunInProgress, err)
			}
			return nil, p.fail(logger, start, fmt.Errorf("実行ロックの取得に失敗: %w", err))
		}
		defer release()
	}

	logger.Info("取り込みパイプラインを開始します",
		slog.Int("lifestyle_sources", len(p.sources.Lifestyle)),
		slog.Int("disease_sources", len(p.sources.Disease)),
	)

	lifestyle, disease := p.fetchAndParse(ctx)
	res.LifestyleParsed = len(lifestyle)

	candidates := trend.KeywordFilter(disease)
	res.DiseaseCandidates = len(candidates)

	// 検証失敗時は空の結果が返るため、ライフスタイル記事だけで続行する
	verified, err := p.deps.Verifier.Verify(ctx, candidates)
	if err != nil {
		logger.Warn("疾患関連記事なしで続行します", slog.String("error", err.Error()))
	}
	capped := p.deps.Sampler.CapDisease(verified, p.maxDiseaseArticles)
	res.DiseaseVerified = len(capped)

	batch := p.deps.Sampler.Sample(lifestyle, capped)

	enriched := p.deps.Summarizer.Enrich(ctx, batch)
	rows := make([]model.EnrichedArticle, len(enriched))
	for i, r := range enriched {
		rows[i] = r.Article
		if r.Fallback {
			res.Fallbacks++
		}
	}

	upserted, err := p.deps.Store.UpsertBatch(ctx, rows)
	if err != nil {
		return nil, p.fail(logger, start, fmt.Errorf("記事の保存に失敗: %w", err))
	}
	p.deps.Recorder.RecordTrendsUpserted(upserted)
	res.Written = len(rows)
	res.Upserted = upserted

	pruned, err := p.deps.Pruner.Run(ctx)
	if err != nil {
		return nil, p.fail(logger, start, fmt.Errorf("古い記事の削除に失敗: %w", err))
	}
	res.Pruned = pruned

	res.Duration = time.Since(start)
	p.deps.Recorder.RecordPipelineRun(metrics.ResultSuccess, res.Duration)
	logger.Info("取り込みパイプラインが完了しました",
		slog.Int("written", res.Written),
		slog.Int("upserted", res.Upserted),
		slog.Int("lifestyle_parsed", res.LifestyleParsed),
		slog.Int("disease_candidates", res.DiseaseCandidates),
		slog.Int("disease_verified", res.DiseaseVerified),
		slog.Int("fallbacks", res.Fallbacks),
		slog.Int("pruned", res.Pruned),
		slog.Float64("duration_ms", float64(res.Duration.Milliseconds())),
	)
	return res, nil
}

func (p *Pipeline) fail(logger *slog.Logger, start time.Time, err error) error {
	duration := time.Since(start)
	p.deps.Recorder.RecordPipelineRun(metrics.ResultFailure, duration)
	logger.Error("取り込みパイプラインが失敗しました",
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return err
}

// fetchAndParse は2つのソースリストを並行して取得し、設定順にパースした記事を返す。
func (p *Pipeline) fetchAndParse(ctx context.Context) (lifestyle, disease []model.Article) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		lifestyle = p.parseList(ListLifestyle, p.sources.Lifestyle, p.deps.Fetcher.FetchAll(ctx, ListLifestyle, p.sources.Lifestyle))
	}()
	go func() {
		defer wg.Done()
		disease = p.parseList(ListDisease, p.sources.Disease, p.deps.Fetcher.FetchAll(ctx, ListDisease, p.sources.Disease))
	}()
	wg.Wait()
	return lifestyle, disease
}

func (p *Pipeline) parseList(list string, sources []string, bodies map[string]string) []model.Article {
	articles := []model.Article{}
	for _, src := range sources {
		body, ok := bodies[src]
		if !ok {
			continue
		}
		parsed := p.deps.Parser.Parse(body)
		if len(parsed) == 0 {
			p.deps.Logger.Debug("フィードから記事を抽出できませんでした",
				slog.String("list", list),
				slog.String("source", src),
			)
		}
		articles = append(articles, parsed...)
	}
	p.deps.Recorder.RecordArticlesParsed(list, len(articles))
	return articles
}
