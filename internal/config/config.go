package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingConfig は必須環境変数が未設定であることを示す。
var ErrMissingConfig = errors.New("required environment variables are not set")

// FeedParserMode はフィード本文の抽出方式を表す。
type FeedParserMode string

const (
	// FeedParserRegex は正規表現ベースの寛容な抽出器を使用する。
	FeedParserRegex FeedParserMode = "regex"
	// FeedParserGofeed はgofeedでパースし、失敗時は正規表現抽出器にフォールバックする。
	FeedParserGofeed FeedParserMode = "gofeed"
)

// LockMode はパイプラインの同時実行制御方式を表す。
type LockMode string

const (
	// LockNone は同時実行を制御しない。
	LockNone LockMode = "none"
	// LockAdvisory はPostgreSQLのアドバイザリロックで重複実行を拒否する。
	LockAdvisory LockMode = "advisory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Trigger
	CronSecret        string
	TriggerRatePerMin int

	// Generative language model
	GeminiAPIKey      string
	GeminiModel       string
	GeminiEndpoint    string
	GeminiTimeout     time.Duration
	GeminiMinInterval time.Duration

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int
	FeedParser         FeedParserMode
	FeedSourcesFile    string
	Sources            Sources

	// Pipeline
	ArticleQuota       int
	MaxDiseaseArticles int
	RetentionCap       int
	PadToQuota         bool
	PipelineLock       LockMode
	RunInterval        time.Duration

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort         string
	ServerWriteTimeout time.Duration
	CORSAllowedOrigin  string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はErrMissingConfigをラップしたエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	cfg.CronSecret = os.Getenv("CRON_SECRET")
	if cfg.CronSecret == "" {
		missing = append(missing, "CRON_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, missing)
	}

	// Optional fields with defaults
	cfg.TriggerRatePerMin = getEnvInt("TRIGGER_RATE_PER_MIN", 10)
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.5-pro")
	cfg.GeminiEndpoint = strings.TrimRight(getEnvString("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"), "/")
	cfg.GeminiTimeout = getEnvDuration("GEMINI_TIMEOUT", 0)
	cfg.GeminiMinInterval = getEnvDuration("GEMINI_MIN_INTERVAL", time.Second)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 0)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 8)
	cfg.FeedParser = FeedParserMode(strings.ToLower(getEnvString("FEED_PARSER", string(FeedParserRegex))))
	cfg.FeedSourcesFile = getEnvString("FEED_SOURCES_FILE", "")
	cfg.ArticleQuota = getEnvInt("ARTICLE_QUOTA", 30)
	cfg.MaxDiseaseArticles = getEnvInt("MAX_DISEASE_ARTICLES", 3)
	cfg.RetentionCap = getEnvInt("RETENTION_CAP", 60)
	cfg.PadToQuota = getEnvBool("PAD_TO_QUOTA", true)
	cfg.PipelineLock = LockMode(strings.ToLower(getEnvString("PIPELINE_LOCK", string(LockNone))))
	cfg.RunInterval = getEnvDuration("RUN_INTERVAL", 24*time.Hour)
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Minute)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	sources := DefaultSources()
	if cfg.FeedSourcesFile != "" {
		fileSources, err := LoadSourcesFile(cfg.FeedSourcesFile)
		if err != nil {
			return nil, err
		}
		sources = sources.Override(fileSources)
	}
	cfg.Sources = sources

	return cfg, nil
}

// validate は値の組み合わせを検証する。
func (c *Config) validate() error {
	switch c.FeedParser {
	case FeedParserRegex, FeedParserGofeed:
	default:
		return fmt.Errorf("invalid FEED_PARSER: %q (valid: regex, gofeed)", c.FeedParser)
	}

	switch c.PipelineLock {
	case LockNone, LockAdvisory:
	default:
		return fmt.Errorf("invalid PIPELINE_LOCK: %q (valid: none, advisory)", c.PipelineLock)
	}

	if c.ArticleQuota <= 0 {
		return fmt.Errorf("ARTICLE_QUOTA must be positive, got %d", c.ArticleQuota)
	}
	if c.MaxDiseaseArticles < 0 {
		return fmt.Errorf("MAX_DISEASE_ARTICLES must not be negative, got %d", c.MaxDiseaseArticles)
	}
	// 保持上限が1回分の出力件数を下回ると、書き込んだ直後の記事が削除される
	if c.RetentionCap < c.ArticleQuota {
		return fmt.Errorf("RETENTION_CAP (%d) must be >= ARTICLE_QUOTA (%d)", c.RetentionCap, c.ArticleQuota)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
