package app

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/healthtrends/internal/config"
	"github.com/hitoshi/healthtrends/internal/database"
	"github.com/hitoshi/healthtrends/internal/handler"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	setTestEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestBuildPipeline_Wires(t *testing.T) {
	for _, lock := range []config.LockMode{config.LockNone, config.LockAdvisory} {
		cfg := testConfig(t)
		cfg.PipelineLock = lock

		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			t.Fatalf("database.Open() error = %v", err)
		}
		defer db.Close()

		if p := buildPipeline(cfg, db, newMetricsSet().collector, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))); p == nil {
			t.Errorf("lock=%s: buildPipeline returned nil", lock)
		}
	}
}

func TestBuildRouterDeps_ServesMetricsAndHealth(t *testing.T) {
	cfg := testConfig(t)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	m := newMetricsSet()
	pipeline := buildPipeline(cfg, db, m.collector, logger)
	deps := buildRouterDeps(cfg, db, pipeline, m, logger)
	defer deps.TriggerLimiter.Stop()

	router := handler.NewRouter(deps)

	// DBに到達できないためヘルスチェックは503
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("/health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	// 認証失敗ではパイプラインもDBも触らない
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, handler.TriggerPath+"?secret=wrong", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("trigger status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	for _, name := range []string{"go_goroutines", "healthtrends_http_requests_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("/metrics に %s が含まれない", name)
		}
	}
}
