package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/randomtoy/oraculum/internal/domain"
)

type Config struct {
	HTTPAddr string
	LogLevel slog.Level

	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	DeckID        string
	DefaultTariff string
	Tariffs       map[string]domain.Tariff

	// Retry shape for one model call.
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	AttemptTimeout      time.Duration
	// StageTimeout bounds one pipeline stage, retries included.
	StageTimeout time.Duration

	SettlementPolicy domain.SettlementPolicy

	// RendererURL enables spread images when set.
	RendererURL     string
	RenderCacheSize int

	// ReadingLogPath enables the JSONL reading archive when set.
	ReadingLogPath string

	// LedgerDSN selects the Postgres credit store; empty means in-memory.
	LedgerDSN string
}

func Load() (Config, error) {
	c := Config{
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: envOr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		DeckID:            envOr("DECK_ID", "major_arcana"),
		DefaultTariff:     envOr("DEFAULT_TARIFF", "basic"),
		RendererURL:       os.Getenv("RENDERER_URL"),
		ReadingLogPath:    os.Getenv("READING_LOG_PATH"),
		LedgerDSN:         os.Getenv("LEDGER_DSN"),
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	c.LogLevel = level

	if c.RetryMaxAttempts, err = envInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if c.RenderCacheSize, err = envInt("RENDER_CACHE_SIZE", 128); err != nil {
		return Config{}, err
	}
	if c.RetryInitialBackoff, err = envDuration("RETRY_INITIAL_BACKOFF", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if c.RetryMaxBackoff, err = envDuration("RETRY_MAX_BACKOFF", 10*time.Second); err != nil {
		return Config{}, err
	}
	if c.AttemptTimeout, err = envDuration("ATTEMPT_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	if c.StageTimeout, err = envDuration("STAGE_TIMEOUT", 5*time.Minute); err != nil {
		return Config{}, err
	}

	policy, err := domain.ParseSettlementPolicy(envOr("SETTLEMENT_POLICY", "none"))
	if err != nil {
		return Config{}, err
	}
	c.SettlementPolicy = policy

	c.Tariffs = defaultTariffs()
	if path := os.Getenv("TARIFFS_FILE"); path != "" {
		tariffs, err := loadTariffs(path)
		if err != nil {
			return Config{}, err
		}
		c.Tariffs = tariffs
	}
	if _, ok := c.Tariffs[c.DefaultTariff]; !ok {
		return Config{}, fmt.Errorf("DEFAULT_TARIFF %q is not a configured tariff", c.DefaultTariff)
	}

	if c.OpenRouterAPIKey == "" {
		return Config{}, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if c.RetryMaxAttempts < 1 {
		return Config{}, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	return c, nil
}

// defaultTariffs covers a free tier and a paid tier out of the box; a
// TARIFFS_FILE replaces the whole set.
func defaultTariffs() map[string]domain.Tariff {
	return map[string]domain.Tariff{
		"basic": {
			Name:           "basic",
			Model:          "qwen/qwen3-4b:free",
			Temperature:    0.7,
			MaxTokens:      1500,
			SessionCost:    1,
			InitialBalance: 3,
		},
		"premium": {
			Name:           "premium",
			Model:          "anthropic/claude-sonnet-4",
			Temperature:    0.8,
			MaxTokens:      4000,
			SessionCost:    5,
			InitialBalance: 0,
		},
	}
}

func loadTariffs(path string) (map[string]domain.Tariff, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tariffs file: %w", err)
	}
	var list []domain.Tariff
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse tariffs file %s: %w", path, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("tariffs file %s defines no tariffs", path)
	}
	tariffs := make(map[string]domain.Tariff, len(list))
	for _, t := range list {
		if t.Name == "" {
			return nil, fmt.Errorf("tariffs file %s: tariff without a name", path)
		}
		if t.Model == "" {
			return nil, fmt.Errorf("tariffs file %s: tariff %q without a model", path, t.Name)
		}
		if t.SessionCost < 0 || t.InitialBalance < 0 {
			return nil, fmt.Errorf("tariffs file %s: tariff %q has negative credits", path, t.Name)
		}
		tariffs[t.Name] = t
	}
	return tariffs, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}
