package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "METROFLOW_"
	envConfigPath = "METROFLOW_CONFIG"
	envDotenvPath = "METROFLOW_DOTENV"
	// legacyKeyEnv is the older, unprefixed AMap key variable.
	legacyKeyEnv = "AMAP_API_KEY"
	dateLayout   = "2006-01-02"
	maxPageSize  = 50
)

// Load builds a Config by layering sources.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. YAML file if METROFLOW_CONFIG is set
//  3. .env file (METROFLOW_DOTENV or ./.env), never overriding the real environment
//  4. env (prefix METROFLOW_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := loadDotenv(); err != nil {
		return nil, err
	}

	// METROFLOW_SEARCH_RADIUS -> search_radius; underscores are kept to match koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.AMapKey == "" {
		cfg.AMapKey = os.Getenv(legacyKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotenv() error {
	path := os.Getenv(envDotenvPath)
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: dotenv %s: %w", ErrLoadConfig, path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PageSize < 1 || c.PageSize > maxPageSize:
		return fmt.Errorf("%w: page_size must be in 1..%d", ErrInvalidConfig, maxPageSize)
	case c.SearchRadius <= 0:
		return fmt.Errorf("%w: search_radius must be positive", ErrInvalidConfig)
	case c.FlowIntervalMinutes != 10 && c.FlowIntervalMinutes != 30:
		return fmt.Errorf("%w: flow_interval_minutes must be 10 or 30", ErrInvalidConfig)
	case c.RequestTimeoutMS < 1000 || c.RequestTimeoutMS > 30_000:
		return fmt.Errorf("%w: request_timeout_ms must be in 1000..30000", ErrInvalidConfig)
	case c.GroupDelayMS < 1 || c.GroupDelayMS > 5000:
		return fmt.Errorf("%w: group_delay_ms must be in 1..5000", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be at least 1", ErrInvalidConfig)
	}
	if _, err := time.Parse(dateLayout, c.ReferenceDate); err != nil {
		return fmt.Errorf("%w: reference_date: %w", ErrInvalidConfig, err)
	}
	return nil
}

// RequireAMapKey fails when the upstream credential is missing.
func (c *Config) RequireAMapKey() error {
	if strings.TrimSpace(c.AMapKey) == "" {
		return fmt.Errorf("%w: amap_key (or %s) is required", ErrInvalidConfig, legacyKeyEnv)
	}
	return nil
}
