package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Upstream provider (FreePBX local connector)
	UpstreamURL     string
	UpstreamToken   string
	UpstreamTimeout time.Duration

	// Aggregation cadence
	PollInterval time.Duration
	AlertWindow  time.Duration

	// Subscriber/query surface auth (shared token, empty disables)
	AuthToken string

	// WebSocket timeouts
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UpstreamURL:    getEnv("UPSTREAM_URL", ""),
		UpstreamToken:  getEnv("UPSTREAM_TOKEN", ""),
		AuthToken:      getEnv("AUTH_TOKEN", ""),
	}

	upstreamTimeout, err := strconv.Atoi(getEnv("UPSTREAM_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}
	config.UpstreamTimeout = time.Duration(upstreamTimeout) * time.Second

	pollInterval, err := strconv.Atoi(getEnv("POLL_INTERVAL_MS", "5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL_MS: %w", err)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive, got %d", pollInterval)
	}
	config.PollInterval = time.Duration(pollInterval) * time.Millisecond

	alertWindow, err := strconv.Atoi(getEnv("ALERT_WINDOW", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_WINDOW: %w", err)
	}
	config.AlertWindow = time.Duration(alertWindow) * time.Second

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
