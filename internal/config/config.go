package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the settlement platform.
type Config struct {
	Port            int
	LogLevel        string
	SweepInterval   time.Duration
	WebhookTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// FX rate feed.
	RateURL     string // empty selects the fixed dev provider
	RateTTL     time.Duration
	RateTimeout time.Duration

	// Providus Bank NGN rail.
	ProvidusURL          string
	ProvidusClientID     string
	ProvidusClientSecret string

	// Afrexim CIPS CNY rail.
	CIPSURL        string
	CIPSAPIKey     string
	CIPSMerchantID string

	RailTimeout time.Duration

	// Settlement orchestration.
	SettlementWorkers   int
	MaxSubmitAttempts   int
	MaxPollAttempts     int
	PollInitialInterval time.Duration
	PollMaxInterval     time.Duration
	ReversalMaxInterval time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	sweepInterval, err := getDuration("SWEEP_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	rateTTL, err := getDuration("RATE_TTL", 300*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_TTL: %w", err)
	}

	rateTimeout, err := getDuration("RATE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_TIMEOUT: %w", err)
	}

	railTimeout, err := getDuration("RAIL_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RAIL_TIMEOUT: %w", err)
	}

	settlementWorkers, err := getInt("SETTLEMENT_WORKERS", 8)
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLEMENT_WORKERS: %w", err)
	}
	if settlementWorkers < 1 {
		return nil, fmt.Errorf("invalid SETTLEMENT_WORKERS: must be at least 1")
	}

	maxSubmitAttempts, err := getInt("MAX_SUBMIT_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_SUBMIT_ATTEMPTS: %w", err)
	}
	if maxSubmitAttempts < 1 {
		return nil, fmt.Errorf("invalid MAX_SUBMIT_ATTEMPTS: must be at least 1")
	}

	maxPollAttempts, err := getInt("MAX_POLL_ATTEMPTS", 8)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_POLL_ATTEMPTS: %w", err)
	}
	if maxPollAttempts < 1 {
		return nil, fmt.Errorf("invalid MAX_POLL_ATTEMPTS: must be at least 1")
	}

	pollInitialInterval, err := getDuration("POLL_INITIAL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INITIAL_INTERVAL: %w", err)
	}

	pollMaxInterval, err := getDuration("POLL_MAX_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_MAX_INTERVAL: %w", err)
	}

	reversalMaxInterval, err := getDuration("REVERSAL_MAX_INTERVAL", 1*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid REVERSAL_MAX_INTERVAL: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		SweepInterval:   sweepInterval,
		WebhookTimeout:  webhookTimeout,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,

		RateURL:     getStr("RATE_URL", ""),
		RateTTL:     rateTTL,
		RateTimeout: rateTimeout,

		ProvidusURL:          getStr("PROVIDUS_URL", ""),
		ProvidusClientID:     getStr("PROVIDUS_CLIENT_ID", ""),
		ProvidusClientSecret: getStr("PROVIDUS_CLIENT_SECRET", ""),

		CIPSURL:        getStr("CIPS_URL", ""),
		CIPSAPIKey:     getStr("CIPS_API_KEY", ""),
		CIPSMerchantID: getStr("CIPS_MERCHANT_ID", ""),

		RailTimeout: railTimeout,

		SettlementWorkers:   settlementWorkers,
		MaxSubmitAttempts:   maxSubmitAttempts,
		MaxPollAttempts:     maxPollAttempts,
		PollInitialInterval: pollInitialInterval,
		PollMaxInterval:     pollMaxInterval,
		ReversalMaxInterval: reversalMaxInterval,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
