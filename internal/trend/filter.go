// Package trend は記事の選別・サンプリング・要約付与を提供する。
package trend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hitoshi/healthtrends/internal/gemini"
	"github.com/hitoshi/healthtrends/internal/metrics"
	"github.com/hitoshi/healthtrends/internal/model"
)

// ContentGenerator はプロンプトからテキストを生成するモデルのインターフェース。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// ErrVerificationFailed は疾患関連記事の検証呼び出しが失敗したことを示す。
// この場合、候補は1件も採用されない。
var ErrVerificationFailed = errors.New("disease verification failed")

// diseaseTerms は流行・感染症・公衆衛生に関する語彙。
// 語頭一致のため"flu"は"fluid"にも一致する。再現率を優先し、精度はモデル検証で補う。
var diseaseTerms = []string{
	"covid", "corona", "dengue", "virus", "flu", "influenza", "infection",
	"outbreak", "malaria", "nipah", "ebola", "zika", "avian flu", "respiratory",
	"disease", "public health", "illness", "fever", "epidemic", "pandemic",
	"vaccine", "variant", "health alert", "health emergency",
}

var (
	diseaseTermPattern = buildTermPattern(diseaseTerms)
	// 機関名は大文字の単語としてのみ一致させる（"who"や"whole"は対象外）
	agencyPattern = regexp.MustCompile(`\b(?:WHO|CDC)\b`)
)

func buildTermPattern(terms []string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		// 複数語の語句は任意の空白で区切られていてよい
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(t), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)`)
}

// MatchesDiseaseKeyword はテキストが疾患関連の語彙を含むかを判定する。
func MatchesDiseaseKeyword(text string) bool {
	return diseaseTermPattern.MatchString(text) || agencyPattern.MatchString(text)
}

// KeywordFilter はタイトルと説明に疾患関連の語彙を含む記事だけを返す。
func KeywordFilter(articles []model.Article) []model.Article {
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if MatchesDiseaseKeyword(a.Title + " " + a.Description) {
			out = append(out, a)
		}
	}
	return out
}

const verifyPrompt = `You are a medical news verifier.
For each title below, return true if it reports a real ongoing disease, outbreak, infection, or health emergency currently affecting people, based on the title content.
Return only JSON: [{"title":"...","is_real":true/false}]

Titles:
%s`

// Verifier はモデルに問い合わせて実在の疾患関連ニュースだけを残す。
type Verifier struct {
	model    ContentGenerator
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewVerifier はVerifierの新しいインスタンスを生成する。
func NewVerifier(model ContentGenerator, recorder metrics.Recorder, logger *slog.Logger) *Verifier {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Verifier{model: model, recorder: recorder, logger: logger}
}

type verdict struct {
	Title  string `json:"title"`
	IsReal bool   `json:"is_real"`
}

// Verify はcandidatesのタイトルを番号付きリストでモデルに送り、
// is_realがtrueと判定された記事を入力順で返す。
// 呼び出し失敗や応答の解析失敗の場合は空スライスとErrVerificationFailedをラップしたエラーを返す。
// candidatesが空の場合はモデルを呼び出さない。
func (v *Verifier) Verify(ctx context.Context, candidates []model.Article) ([]model.Article, error) {
	if len(candidates) == 0 {
		return []model.Article{}, nil
	}

	var titles strings.Builder
	for i, a := range candidates {
		fmt.Fprintf(&titles, "%d. %s\n", i+1, a.Title)
	}

	text, err := v.model.GenerateContent(ctx, fmt.Sprintf(verifyPrompt, titles.String()))
	if err != nil {
		return v.failClosed(candidates, fmt.Errorf("%w: %w", ErrVerificationFailed, err))
	}

	accepted, err := parseVerdicts(text)
	if err != nil {
		return v.failClosed(candidates, fmt.Errorf("%w: %w", ErrVerificationFailed, err))
	}

	kept := make([]model.Article, 0, len(candidates))
	for _, a := range candidates {
		if accepted.contains(a.Title) {
			kept = append(kept, a)
		}
	}

	v.recorder.RecordDiseaseVerification(metrics.VerifyAccepted, len(kept))
	v.recorder.RecordDiseaseVerification(metrics.VerifyRejected, len(candidates)-len(kept))
	v.logger.Info("疾患関連記事の検証が完了しました",
		slog.Int("candidates", len(candidates)),
		slog.Int("accepted", len(kept)),
	)
	return kept, nil
}

func (v *Verifier) failClosed(candidates []model.Article, err error) ([]model.Article, error) {
	v.recorder.RecordDiseaseVerification(metrics.VerifyError, len(candidates))
	v.logger.Error("疾患関連記事の検証に失敗したため、候補を採用しません",
		slog.Int("candidates", len(candidates)),
		slog.String("error", err.Error()),
	)
	return []model.Article{}, err
}

// parseVerdicts はモデル応答からis_realがtrueのタイトル集合を作る。
// 要素単位で解析し、解析できない要素はfalseとして扱う。
func parseVerdicts(text string) (titleSet, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(gemini.ExtractJSONArray(text)), &elems); err != nil {
		return titleSet{}, fmt.Errorf("unparseable verification response: %w", err)
	}

	set := newTitleSet()
	for _, raw := range elems {
		var vd verdict
		if err := json.Unmarshal(raw, &vd); err != nil {
			continue
		}
		if vd.IsReal {
			set.add(vd.Title)
		}
	}
	return set, nil
}

// titleSet はタイトルの完全一致と、大文字小文字・前後空白を無視した一致で引ける集合。
type titleSet struct {
	exact map[string]struct{}
	fold  map[string]struct{}
}

func newTitleSet() titleSet {
	return titleSet{exact: map[string]struct{}{}, fold: map[string]struct{}{}}
}

func (s titleSet) add(title string) {
	s.exact[title] = struct{}{}
	s.fold[foldTitle(title)] = struct{}{}
}

func (s titleSet) contains(title string) bool {
	if _, ok := s.exact[title]; ok {
		return true
	}
	_, ok := s.fold[foldTitle(title)]
	return ok
}

func foldTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
