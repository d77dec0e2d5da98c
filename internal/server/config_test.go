package server

import (
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":3003" {
		t.Errorf("expected default port :3003, got %q", cfg.Port)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("expected default max message size 4096, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimitBurst != 20 {
		t.Errorf("expected default burst 20, got %d", cfg.RateLimitBurst)
	}
	if cfg.RateLimitRefillInterval != time.Second {
		t.Errorf("expected default refill interval 1s, got %s", cfg.RateLimitRefillInterval)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("ALLOWED_ORIGINS", "https://example.com, https://app.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")

	cfg := NewConfigFromEnv()

	if cfg.Port != ":9999" {
		t.Errorf("expected :9999, got %q", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("expected 1024, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimitBurst != 3 {
		t.Errorf("expected 3, got %d", cfg.RateLimitBurst)
	}
	if cfg.RateLimitRefillInterval != 2*time.Second {
		t.Errorf("expected 2s, got %s", cfg.RateLimitRefillInterval)
	}
}

func TestSetConfigSanitizesInvalidValues(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{
		Port:                    "",
		MaxMessageSize:          -1,
		RateLimitBurst:          0,
		RateLimitRefillInterval: -time.Second,
	})

	cfg := currentConfig()
	if cfg.Port == "" || cfg.MaxMessageSize <= 0 || cfg.RateLimitBurst <= 0 || cfg.RateLimitRefillInterval <= 0 {
		t.Errorf("sanitize did not restore defaults: %+v", cfg)
	}
}

func TestSetConfigNilResetsDefaults(t *testing.T) {
	SetConfig(&Config{Port: ":7777"})
	SetConfig(nil)

	if cfg := currentConfig(); cfg.Port != ":3003" {
		t.Errorf("expected defaults after nil reset, got %+v", cfg)
	}
}
