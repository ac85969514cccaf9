package trend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/healthtrends/internal/gemini"
	"github.com/hitoshi/healthtrends/internal/metrics"
	"github.com/hitoshi/healthtrends/internal/model"
)

// promptDescriptionLimit はプロンプトに含める説明文の最大文字数。
const promptDescriptionLimit = 300

const summaryPrompt = `You are a health journalist AI. For each article, write a 2-line short summary and pick a category from:
%s.
Return only JSON: [{"title":"...","category":"...","summary":"..."}]

Articles:
%s`

// EnrichResult は1記事分の要約付与結果。
// Fallbackがtrueの場合、カテゴリと要約の少なくとも一方が既定値で、Errにその理由が入る。
type EnrichResult struct {
	Article  model.EnrichedArticle
	Fallback bool
	Err      error
}

// Summarizer はモデルを1回呼び出してバッチ全体にカテゴリと要約を付与する。
type Summarizer struct {
	model    ContentGenerator
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewSummarizer はSummarizerの新しいインスタンスを生成する。
func NewSummarizer(model ContentGenerator, recorder metrics.Recorder, logger *slog.Logger) *Summarizer {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Summarizer{model: model, recorder: recorder, logger: logger}
}

type summaryEntry struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

// Enrich はbatchの各記事にカテゴリと要約を付与した結果を入力順で返す。
// 呼び出し全体が失敗した場合は全記事が既定値となり、処理自体は失敗しない。
// 応答は要素単位で解析し、1要素の不備が他の記事に影響しない。
func (s *Summarizer) Enrich(ctx context.Context, batch []model.Article) []EnrichResult {
	if len(batch) == 0 {
		return []EnrichResult{}
	}

	entries, callErr := s.requestSummaries(ctx, batch)
	if callErr != nil {
		s.logger.Error("要約の生成に失敗したため、全記事に既定値を使用します",
			slog.Int("articles", len(batch)),
			slog.String("error", callErr.Error()),
		)
	}

	results := make([]EnrichResult, len(batch))
	fallbacks := 0
	for i, a := range batch {
		var r EnrichResult
		if callErr != nil {
			r = fallbackResult(a, callErr)
		} else {
			r = entries.resolve(a)
		}
		if r.Fallback {
			fallbacks++
			s.logger.Debug("記事に既定の要約を使用します",
				slog.String("link", a.Link),
				slog.String("reason", r.Err.Error()),
			)
		}
		results[i] = r
	}

	s.recorder.RecordSummaryFallback(fallbacks)
	s.logger.Info("要約・分類の付与が完了しました",
		slog.Int("articles", len(batch)),
		slog.Int("fallbacks", fallbacks),
	)
	return results
}

func (s *Summarizer) requestSummaries(ctx context.Context, batch []model.Article) (*entryIndex, error) {
	text, err := s.model.GenerateContent(ctx, buildSummaryPrompt(batch))
	if err != nil {
		return nil, fmt.Errorf("summary call failed: %w", err)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(gemini.ExtractJSONArray(text)), &elems); err != nil {
		return nil, fmt.Errorf("unparseable summary response: %w", err)
	}

	idx := newEntryIndex()
	for _, raw := range elems {
		var e summaryEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			idx.parseFailures++
			continue
		}
		idx.add(e)
	}
	return idx, nil
}

func buildSummaryPrompt(batch []model.Article) string {
	categories := make([]string, 0, len(model.AllCategories()))
	for _, c := range model.AllCategories() {
		categories = append(categories, string(c))
	}

	var b strings.Builder
	for i, a := range batch {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, a.Title, truncateRunes(a.Description, promptDescriptionLimit))
	}
	return fmt.Sprintf(summaryPrompt, strings.Join(categories, ", "), b.String())
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "…"
}

// entryIndex はモデル応答をタイトルで引けるようにした索引。
// 同じタイトルが複数ある場合は最初の要素を採用する。
type entryIndex struct {
	exact         map[string]summaryEntry
	fold          map[string]summaryEntry
	parseFailures int
}

func newEntryIndex() *entryIndex {
	return &entryIndex{exact: map[string]summaryEntry{}, fold: map[string]summaryEntry{}}
}

func (x *entryIndex) add(e summaryEntry) {
	if _, ok := x.exact[e.Title]; !ok {
		x.exact[e.Title] = e
	}
	key := foldTitle(e.Title)
	if _, ok := x.fold[key]; !ok {
		x.fold[key] = e
	}
}

func (x *entryIndex) lookup(title string) (summaryEntry, bool) {
	if e, ok := x.exact[title]; ok {
		return e, true
	}
	e, ok := x.fold[foldTitle(title)]
	return e, ok
}

// resolve は記事に対応する応答要素からEnrichResultを作る。
// カテゴリと要約は個別に検証し、不正な方だけ既定値にする。
func (x *entryIndex) resolve(a model.Article) EnrichResult {
	e, ok := x.lookup(a.Title)
	if !ok {
		err := errors.New("title not found in model response")
		if x.parseFailures > 0 {
			err = fmt.Errorf("title not found in model response (%d unparseable elements)", x.parseFailures)
		}
		return fallbackResult(a, err)
	}

	r := EnrichResult{Article: enriched(a, model.FallbackCategory, model.FallbackSummary)}
	var problems []string

	if c, valid := model.ParseCategory(e.Category); valid {
		r.Article.Category = c
	} else {
		problems = append(problems, fmt.Sprintf("invalid category %q", e.Category))
	}

	if summary := strings.TrimSpace(e.Summary); summary != "" {
		r.Article.ShortSummary = summary
	} else {
		problems = append(problems, "empty summary")
	}

	if len(problems) > 0 {
		r.Fallback = true
		r.Err = errors.New(strings.Join(problems, "; "))
	}
	return r
}

func fallbackResult(a model.Article, err error) EnrichResult {
	return EnrichResult{
		Article:  enriched(a, model.FallbackCategory, model.FallbackSummary),
		Fallback: true,
		Err:      err,
	}
}

func enriched(a model.Article, c model.Category, summary string) model.EnrichedArticle {
	return model.EnrichedArticle{
		Article:      a,
		Category:     c,
		ShortSummary: summary,
		IsPublished:  true,
	}
}
