// Package gemini は生成言語モデルのgenerateContent APIクライアントを提供する。
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrEmptyResponse は候補やテキストを含まない応答を示す。
var ErrEmptyResponse = errors.New("empty model response")

// maxErrorBodySize はエラー応答から読み取る最大バイト数。
const maxErrorBodySize = 1024

// APIError は200以外のステータスで返された応答を表す。
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API %d: %s", e.StatusCode, e.Body)
}

// ClientConfig はClientの接続設定。
type ClientConfig struct {
	APIKey   string
	Model    string
	Endpoint string
	// Timeout は1回の呼び出しのタイムアウト。0の場合はタイムアウトしない。
	Timeout time.Duration
	// MinInterval は連続する呼び出しの最小間隔。0以下の場合は制限しない。
	MinInterval time.Duration
}

// Client はgenerateContentを呼び出すHTTPクライアント。
// APIキーはURLではなくヘッダーで送るため、エラーメッセージやログに含まれない。
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// Model は呼び出し先のモデル名を返す。
func (c *Client) Model() string {
	return c.model
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// GenerateContent はpromptを1件のユーザーメッセージとして送り、
// 最初の候補の最初のテキストパートを返す。
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}

	c.logger.Debug("model call completed",
		slog.String("model", c.model),
		slog.Int("prompt_chars", len(prompt)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	text := gr.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
