package trend

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"
)

// mockGenerator はContentGeneratorのテスト用モック。
type mockGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (m *mockGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// mockRecorder はmetrics.Recorderのテスト用モック。
type mockRecorder struct {
	verification map[string]int
	fallbacks    int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{verification: map[string]int{}}
}

func (m *mockRecorder) RecordPipelineRun(string, time.Duration) {}
func (m *mockRecorder) RecordFeedFetch(string, string, time.Duration) {}
func (m *mockRecorder) RecordArticlesParsed(string, int) {}
func (m *mockRecorder) RecordDiseaseVerification(result string, n int) {
	m.verification[result] += n
}
func (m *mockRecorder) RecordSummaryFallback(n int) { m.fallbacks += n }
func (m *mockRecorder) RecordTrendsUpserted(int) {}
func (m *mockRecorder) RecordTrendsPruned(int) {}
func (m *mockRecorder) RecordHTTPStatus(int) {}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
