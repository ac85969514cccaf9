package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/healthtrends/internal/model"
	"github.com/hitoshi/healthtrends/internal/worker/ingest"
)

// mockRunner はPipelineRunnerのモック。
type mockRunner struct {
	mu    sync.Mutex
	calls int
	runFn func(ctx context.Context) (*ingest.Result, error)
}

func (m *mockRunner) Run(ctx context.Context) (*ingest.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return &ingest.Result{}, nil
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockTrendLister はTrendListerのモック。
type mockTrendLister struct {
	gotFilter *model.TrendFilter
	listFn    func(ctx context.Context, filter model.TrendFilter) ([]model.HealthTrend, error)
}

func (m *mockTrendLister) ListRandom(ctx context.Context, filter model.TrendFilter) ([]model.HealthTrend, error) {
	m.gotFilter = &filter
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

// mockPinger はPingerのモック。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

var errTest = errors.New("test error")

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
