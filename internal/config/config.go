// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	ScorerURL     string `env:"SCORER_URL"`
	MarketDataURL string `env:"MARKET_DATA_URL"`

	// MaxTokens is the chunk budget: the scorer's 512-token input limit
	// minus two slots reserved for special tokens.
	MaxTokens         int     `env:"MAX_TOKENS" default:"510"`
	Horizons          string  `env:"HORIZONS" default:"1d,1w"`
	LookaheadDays     int     `env:"LOOKAHEAD_DAYS" default:"5"`
	MinSampleSize     int     `env:"MIN_SAMPLE_SIZE" default:"5"`
	Symbols           string  `env:"SYMBOLS" default:"EURUSD=X,^GSPC,^TNX,GC=F,^STOXX50E"`
	CompoundFormula   string  `env:"COMPOUND_FORMULA" default:"net"`
	ScorerConcurrency int     `env:"SCORER_CONCURRENCY" default:"4"`
	MarketRateLimit   float64 `env:"MARKET_RATE_LIMIT" default:"5"`

	// RefreshInterval is how often the scheduled refresh scores, aligns,
	// and recomputes correlations. Zero disables the scheduler.
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" default:"1h"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL":    cfg.DatabaseURL,
		"REDIS_URL":       cfg.RedisURL,
		"SCORER_URL":      cfg.ScorerURL,
		"MARKET_DATA_URL": cfg.MarketDataURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.MaxTokens < 1 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", cfg.MaxTokens)
	}
	if cfg.LookaheadDays < 0 {
		return fmt.Errorf("LOOKAHEAD_DAYS must not be negative, got %d", cfg.LookaheadDays)
	}
	if cfg.MinSampleSize < 2 {
		return fmt.Errorf("MIN_SAMPLE_SIZE must be at least 2, got %d", cfg.MinSampleSize)
	}
	if cfg.ScorerConcurrency < 1 {
		return fmt.Errorf("SCORER_CONCURRENCY must be positive, got %d", cfg.ScorerConcurrency)
	}
	if cfg.MarketRateLimit <= 0 {
		return fmt.Errorf("MARKET_RATE_LIMIT must be positive, got %f", cfg.MarketRateLimit)
	}
	if cfg.RefreshInterval < 0 {
		return fmt.Errorf("REFRESH_INTERVAL must not be negative, got %s", cfg.RefreshInterval)
	}
	if cfg.CompoundFormula != "net" && cfg.CompoundFormula != "confidence" {
		return fmt.Errorf("COMPOUND_FORMULA must be 'net' or 'confidence', got %q", cfg.CompoundFormula)
	}
	if _, err := cfg.ParseHorizons(); err != nil {
		return err
	}
	if len(cfg.ParseSymbols()) == 0 {
		return fmt.Errorf("SYMBOLS must list at least one symbol")
	}

	return nil
}

// ParseHorizons returns the configured horizons in their configured order.
func (c *Config) ParseHorizons() ([]domain.Horizon, error) {
	parts := splitList(c.Horizons)
	if len(parts) == 0 {
		return nil, fmt.Errorf("HORIZONS must list at least one horizon")
	}
	horizons := make([]domain.Horizon, 0, len(parts))
	for _, part := range parts {
		h, err := domain.ParseHorizon(part)
		if err != nil {
			return nil, fmt.Errorf("HORIZONS: %w", err)
		}
		horizons = append(horizons, h)
	}
	return horizons, nil
}

// ParseSymbols returns the configured market universe.
func (c *Config) ParseSymbols() []string {
	return splitList(c.Symbols)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
