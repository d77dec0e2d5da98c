// Package server provides configuration helpers that define runtime
// defaults, validation, and rate-limiting parameters for the presence
// service.
package server

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/atlaschat/presence/internal/logger"
)

// RateLimitConfig defines the parameters for per-connection frame rate
// limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration. Values come from the environment
// via NewConfigFromEnv; unset variables fall back to the envDefault tags.
type Config struct {
	Port                    string        `env:"SERVER_PORT" envDefault:":3003"`
	AllowedOrigins          []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	MaxMessageSize          int64         `env:"MAX_MESSAGE_SIZE" envDefault:"4096"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST" envDefault:"20"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port:                    ":3003",
		AllowedOrigins:          []string{"http://localhost:3000"},
		MaxMessageSize:          4096,
		RateLimitBurst:          20,
		RateLimitRefillInterval: time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":3003"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	if cfg.RateLimitRefillInterval <= 0 {
		cfg.RateLimitRefillInterval = time.Second
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to
// defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config populated with default values.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for anything unset or unparsable.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		logger.Warnf("failed to parse environment config, using defaults: %v", err)
		cfg = defaultConfig()
	}
	return &cfg
}
