package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string
	DataDir  string

	// Gateway
	GatewayURL     string
	GatewayAccount string

	GatewayDialTimeout          time.Duration
	GatewayReconnectInitialWait time.Duration
	GatewayReconnectMaxWait     time.Duration
	GatewayEventBufferSize      int

	// Order lifecycle
	OrderIDTimeout      time.Duration
	OrderResolveTimeout time.Duration
	CancelTimeout       time.Duration
	SnapshotTimeout     time.Duration

	// Equity ledger
	EquityMinInterval time.Duration
	EquityMinMove     float64
	EquityMinMovePct  float64
	EquityMaxPoints   int
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
		DataDir:  getEnvOrDefault("DATA_DIR", defaultDataDir()),

		// Gateway defaults
		GatewayURL:     getEnvOrDefault("GATEWAY_URL", "ws://127.0.0.1:5001/ws"),
		GatewayAccount: os.Getenv("GATEWAY_ACCOUNT"),

		GatewayDialTimeout:          getDurationOrDefault("GATEWAY_DIAL_TIMEOUT", 10*time.Second),
		GatewayReconnectInitialWait: getDurationOrDefault("GATEWAY_RECONNECT_INITIAL_WAIT", time.Second),
		GatewayReconnectMaxWait:     getDurationOrDefault("GATEWAY_RECONNECT_MAX_WAIT", 30*time.Second),
		GatewayEventBufferSize:      getIntOrDefault("GATEWAY_EVENT_BUFFER_SIZE", 1000),

		// Order lifecycle defaults
		OrderIDTimeout:      getDurationOrDefault("ORDER_ID_TIMEOUT", 5*time.Second),
		OrderResolveTimeout: getDurationOrDefault("ORDER_RESOLVE_TIMEOUT", 30*time.Second),
		CancelTimeout:       getDurationOrDefault("CANCEL_TIMEOUT", 10*time.Second),
		SnapshotTimeout:     getDurationOrDefault("SNAPSHOT_TIMEOUT", 15*time.Second),

		// Equity ledger defaults
		EquityMinInterval: getDurationOrDefault("EQUITY_MIN_INTERVAL", 5*time.Minute),
		EquityMinMove:     getFloat64OrDefault("EQUITY_MIN_MOVE", 50.0),
		EquityMinMovePct:  getFloat64OrDefault("EQUITY_MIN_MOVE_PCT", 0.001),
		EquityMaxPoints:   getIntOrDefault("EQUITY_MAX_POINTS", 50000),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.GatewayURL == "" {
		return fmt.Errorf("GATEWAY_URL cannot be empty")
	}

	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR cannot be empty")
	}

	if c.OrderIDTimeout <= 0 || c.OrderResolveTimeout <= 0 || c.CancelTimeout <= 0 {
		return fmt.Errorf("order timeouts must be positive")
	}

	if c.SnapshotTimeout <= 0 {
		return fmt.Errorf("SNAPSHOT_TIMEOUT must be positive")
	}

	if c.EquityMaxPoints <= 0 {
		return fmt.Errorf("EQUITY_MAX_POINTS must be positive, got %d", c.EquityMaxPoints)
	}

	if c.EquityMinMovePct < 0 || c.EquityMinMovePct >= 1.0 {
		return fmt.Errorf("EQUITY_MIN_MOVE_PCT must be in [0, 1.0), got %f", c.EquityMinMovePct)
	}

	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tradeterm"
	}
	return home + "/.tradeterm"
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
