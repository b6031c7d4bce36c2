package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "SWEEP_INTERVAL", "WEBHOOK_TIMEOUT",
		"READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT",
		"RATE_URL", "RATE_TTL", "RATE_TIMEOUT",
		"PROVIDUS_URL", "PROVIDUS_CLIENT_ID", "PROVIDUS_CLIENT_SECRET",
		"CIPS_URL", "CIPS_API_KEY", "CIPS_MERCHANT_ID", "RAIL_TIMEOUT",
		"SETTLEMENT_WORKERS", "MAX_SUBMIT_ATTEMPTS", "MAX_POLL_ATTEMPTS",
		"POLL_INITIAL_INTERVAL", "POLL_MAX_INTERVAL", "REVERSAL_MAX_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.SweepInterval != time.Second {
		t.Errorf("SweepInterval = %v, want 1s", cfg.SweepInterval)
	}
	if cfg.RateURL != "" {
		t.Errorf("RateURL = %q, want empty (fixed dev provider)", cfg.RateURL)
	}
	if cfg.RateTTL != 300*time.Second {
		t.Errorf("RateTTL = %v, want 5m", cfg.RateTTL)
	}
	if cfg.RailTimeout != 15*time.Second {
		t.Errorf("RailTimeout = %v, want 15s", cfg.RailTimeout)
	}
	if cfg.SettlementWorkers != 8 {
		t.Errorf("SettlementWorkers = %d, want 8", cfg.SettlementWorkers)
	}
	if cfg.MaxSubmitAttempts != 3 {
		t.Errorf("MaxSubmitAttempts = %d, want 3", cfg.MaxSubmitAttempts)
	}
	if cfg.MaxPollAttempts != 8 {
		t.Errorf("MaxPollAttempts = %d, want 8", cfg.MaxPollAttempts)
	}
	if cfg.PollInitialInterval != 500*time.Millisecond {
		t.Errorf("PollInitialInterval = %v, want 500ms", cfg.PollInitialInterval)
	}
	if cfg.ReversalMaxInterval != time.Minute {
		t.Errorf("ReversalMaxInterval = %v, want 1m", cfg.ReversalMaxInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SWEEP_INTERVAL", "250ms")
	t.Setenv("RATE_URL", "https://rates.example.com/v6")
	t.Setenv("PROVIDUS_URL", "https://providus.example.com")
	t.Setenv("SETTLEMENT_WORKERS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.SweepInterval != 250*time.Millisecond {
		t.Errorf("SweepInterval = %v, want 250ms", cfg.SweepInterval)
	}
	if cfg.RateURL != "https://rates.example.com/v6" {
		t.Errorf("RateURL = %q", cfg.RateURL)
	}
	if cfg.ProvidusURL != "https://providus.example.com" {
		t.Errorf("ProvidusURL = %q", cfg.ProvidusURL)
	}
	if cfg.SettlementWorkers != 2 {
		t.Errorf("SettlementWorkers = %d, want 2", cfg.SettlementWorkers)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-numeric port", key: "PORT", value: "http"},
		{name: "unknown log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "malformed sweep interval", key: "SWEEP_INTERVAL", value: "5 seconds"},
		{name: "malformed webhook timeout", key: "WEBHOOK_TIMEOUT", value: "soon"},
		{name: "malformed rate ttl", key: "RATE_TTL", value: "300"},
		{name: "zero workers", key: "SETTLEMENT_WORKERS", value: "0"},
		{name: "negative workers", key: "SETTLEMENT_WORKERS", value: "-1"},
		{name: "zero submit attempts", key: "MAX_SUBMIT_ATTEMPTS", value: "0"},
		{name: "zero poll attempts", key: "MAX_POLL_ATTEMPTS", value: "0"},
		{name: "malformed poll interval", key: "POLL_INITIAL_INTERVAL", value: "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}
