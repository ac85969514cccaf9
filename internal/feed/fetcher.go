// Package feed はRSS/Atomフィードの取得と記事抽出を提供する。
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/hitoshi/healthtrends/internal/metrics"
)

// UserAgent はフィード取得時に送信するUser-Agent。
const UserAgent = "HealthTrendsBot/1.0 (+https://github.com/hitoshi/healthtrends)"

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// FetcherConfig はFetcherの動作設定。
type FetcherConfig struct {
	// Timeout はソースごとのタイムアウト。0の場合はタイムアウトしない。
	Timeout       time.Duration
	MaxBodySize   int64
	MaxConcurrent int
}

// Fetcher は複数のフィードソースを並列に取得する。
// 個別ソースの失敗はログとメトリクスに記録して読み飛ばし、全体の処理は継続する。
type Fetcher struct {
	guard         SSRFValidator
	client        *http.Client
	recorder      metrics.Recorder
	logger        *slog.Logger
	maxBodySize   int64
	maxConcurrent int
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// MaxConcurrentが0以下の場合は8、MaxBodySizeが0以下の場合は5MiBを使用する。
func NewFetcher(guard SSRFValidator, recorder metrics.Recorder, logger *slog.Logger, cfg FetcherConfig) *Fetcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 5 * 1024 * 1024
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Fetcher{
		guard:         guard,
		client:        guard.NewSafeClient(cfg.Timeout),
		recorder:      recorder,
		logger:        logger,
		maxBodySize:   cfg.MaxBodySize,
		maxConcurrent: cfg.MaxConcurrent,
	}
}

// FetchAll はsourcesの各URLを取得し、URLから本文へのマップを返す。
// listはログとメトリクスのラベルに使うソースリスト名（lifestyle / disease）。
// 取得に失敗したソースはマップに含まれない。
// 完了順は結果に影響しないため、呼び出し側は設定されたソース順で走査すること。
func (f *Fetcher) FetchAll(ctx context.Context, list string, sources []string) map[string]string {
	start := time.Now()
	results := make(map[string]string, len(sources))

	var mu sync.Mutex
	sem := make(chan struct{}, f.maxConcurrent)
	var wg sync.WaitGroup

	for _, src := range sources {
		wg.Add(1)
		sem <- struct{}{}

		go func(src string) {
			defer wg.Done()
			defer func() { <-sem }()

			body, err := f.fetchOne(ctx, list, src)
			if err != nil {
				return
			}
			mu.Lock()
			results[src] = body
			mu.Unlock()
		}(src)
	}

	wg.Wait()

	f.logger.Info("フィードリストの取得が完了しました",
		slog.String("list", list),
		slog.Int("source_count", len(sources)),
		slog.Int("fetched_count", len(results)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return results
}

// fetchOne は1ソースを取得し、結果をログとメトリクスに記録する。
func (f *Fetcher) fetchOne(ctx context.Context, list, src string) (string, error) {
	start := time.Now()

	body, status, err := f.Fetch(ctx, src)
	duration := time.Since(start)

	if err != nil {
		f.recorder.RecordFeedFetch(list, metrics.ResultFailure, duration)
		f.logger.Warn("フィードの取得に失敗しました",
			slog.String("list", list),
			slog.String("url", src),
			slog.Int("http_status", status),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return "", err
	}

	f.recorder.RecordFeedFetch(list, metrics.ResultSuccess, duration)
	f.logger.Debug("フィードを取得しました",
		slog.String("list", list),
		slog.String("url", src),
		slog.Int("http_status", status),
		slog.Int("bytes", len(body)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return body, nil
}

// Fetch は1つのフィードURLを取得し、UTF-8に変換した本文とHTTPステータスを返す。
// 2xx以外のステータスはエラーとする。
func (f *Fetcher) Fetch(ctx context.Context, src string) (string, int, error) {
	if err := f.guard.ValidateURL(src); err != nil {
		return "", 0, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", 0, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 接続を再利用できるよう残りを読み捨てる
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return "", resp.StatusCode, fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	if int64(len(raw)) > f.maxBodySize {
		// 正規表現抽出器は途中で切れた文書からも完結したブロックを拾える
		f.logger.Warn("レスポンスが上限サイズを超えたため切り詰めました",
			slog.String("url", src),
			slog.Int64("max_bytes", f.maxBodySize),
		)
		raw = raw[:f.maxBodySize]
	}

	contentType := resp.Header.Get("Content-Type")
	if format := DetectFormat(contentType, raw); format == FormatUnknown {
		f.logger.Debug("レスポンスはフィード形式として認識できません",
			slog.String("url", src),
			slog.String("content_type", contentType),
		)
	}

	body, err := decodeBody(raw, contentType)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("文字コード変換に失敗: %w", err)
	}
	return body, resp.StatusCode, nil
}

var xmlEncodingPattern = regexp.MustCompile(`(?i)<\?xml[^>]*\sencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

// decodeBody はContent-TypeまたはXMLプロローグの文字コード指定に従い本文をUTF-8に変換する。
// どちらにも指定がなく、本文が妥当なUTF-8であればそのまま返す。
func decodeBody(raw []byte, contentType string) (string, error) {
	label := charsetLabel(contentType)
	if label == "" {
		head := raw
		if len(head) > 1024 {
			head = head[:1024]
		}
		if m := xmlEncodingPattern.FindSubmatch(head); m != nil {
			label = string(m[1])
		}
	}

	if label == "" && utf8.Valid(raw) {
		return string(raw), nil
	}

	ct := "text/xml"
	if label != "" {
		ct += "; charset=" + label
	}
	r, err := charset.NewReader(bytes.NewReader(raw), ct)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func charsetLabel(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
