// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath       string `env:"CG_DB_PATH" envDefault:"./data/cyberguard.db"`
	OverflowPath string `env:"CG_OVERFLOW_PATH" envDefault:"./data/overflow.jsonl"`
	ServerHost   string `env:"CG_SERVER_HOST" envDefault:"localhost"`
	ServerPort   int    `env:"CG_SERVER_PORT" envDefault:"8000"`
	Env          string `env:"CG_ENV" envDefault:"development"`
	LogLevel     string `env:"CG_LOG_LEVEL" envDefault:"info"`

	// Classification configuration
	HighSeverityLabels []string `env:"CG_HIGH_SEVERITY_LABELS" envDefault:"phishing,malicious"`

	// Write pipeline configuration
	DrainMaxAttempts    int           `env:"CG_DRAIN_MAX_ATTEMPTS" envDefault:"10"`
	RetryBaseDelay      time.Duration `env:"CG_RETRY_BASE_DELAY" envDefault:"50ms"`
	RetryMaxDelay       time.Duration `env:"CG_RETRY_MAX_DELAY" envDefault:"2s"`
	RecoveryInterval    time.Duration `env:"CG_RECOVERY_INTERVAL" envDefault:"5s"`
	RecoveryMaxAttempts int           `env:"CG_RECOVERY_MAX_ATTEMPTS" envDefault:"3"`
	ReadMaxAttempts     int           `env:"CG_READ_MAX_ATTEMPTS" envDefault:"5"`

	// Rate limiting for the predict endpoints
	RateLimitRPS   float64 `env:"CG_RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"CG_RATE_LIMIT_BURST" envDefault:"10"`

	// Verdict cache configuration
	RedisURL     string `env:"CG_REDIS_URL"`                         // Optional Redis URL for the shared verdict cache
	CachePrefix  string `env:"CG_CACHE_PREFIX" envDefault:"cg:"`     // Redis key prefix
	CacheTTL     int    `env:"CG_CACHE_TTL" envDefault:"300"`        // Verdict cache TTL in seconds
	CacheMaxSize int    `env:"CG_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DrainMaxAttempts < 1 {
		return nil, fmt.Errorf("CG_DRAIN_MAX_ATTEMPTS must be at least 1, got %d", cfg.DrainMaxAttempts)
	}
	if cfg.RetryBaseDelay <= 0 {
		return nil, fmt.Errorf("CG_RETRY_BASE_DELAY must be positive, got %s", cfg.RetryBaseDelay)
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return nil, fmt.Errorf("CG_RETRY_MAX_DELAY (%s) must not be below CG_RETRY_BASE_DELAY (%s)",
			cfg.RetryMaxDelay, cfg.RetryBaseDelay)
	}
	if cfg.RecoveryInterval < time.Second {
		return nil, fmt.Errorf("CG_RECOVERY_INTERVAL must be at least 1s, got %s", cfg.RecoveryInterval)
	}
	labels := make([]string, 0, len(cfg.HighSeverityLabels))
	for _, l := range cfg.HighSeverityLabels {
		if l != "" {
			labels = append(labels, l)
		}
	}
	cfg.HighSeverityLabels = labels
	if len(cfg.HighSeverityLabels) == 0 {
		return nil, fmt.Errorf("CG_HIGH_SEVERITY_LABELS must not be empty")
	}

	return cfg, nil
}
