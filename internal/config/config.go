package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"libraryhub/internal/realtime"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Library backend
	APIURL       string        `env:"API_URL" default:"http://localhost:8080/api"`
	BrokerURL    string        `env:"BROKER_URL" default:"ws://localhost:8080/ws"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" default:"10s"`
	APIRateLimit float64       `env:"API_RATE_LIMIT" default:"10"`
	APIRateBurst int           `env:"API_RATE_BURST" default:"20"`
	PageSize     int           `env:"PAGE_SIZE" default:"10"`

	// Optional token override; normally read from the OS keyring
	AccessToken string `env:"ACCESS_TOKEN"`

	// Push connection
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY" default:"5s"`
	HeartbeatIncoming time.Duration `env:"HEARTBEAT_INCOMING" default:"4s"`
	HeartbeatOutgoing time.Duration `env:"HEARTBEAT_OUTGOING" default:"4s"`

	// Redis Cache (empty URL disables it)
	RedisURL      string        `env:"REDIS_URL"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" default:"24h"`

	// Local status API
	StatusPort int `env:"STATUS_PORT" default:"8084"`

	// Toasts
	ToastRate  float64 `env:"TOAST_RATE" default:"2"`
	ToastBurst int     `env:"TOAST_BURST" default:"5"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// A missing .env is fine; system env vars still apply
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env file: %v\n", err)
	}

	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// Library backend
	if err := loadEnvString(&config.APIURL, "API_URL", "http://localhost:8080/api"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.BrokerURL, "BROKER_URL", "ws://localhost:8080/ws"); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.HTTPTimeout, "HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.APIRateLimit, "API_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.APIRateBurst, "API_RATE_BURST", 20); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.PageSize, "PAGE_SIZE", 10); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.AccessToken, "ACCESS_TOKEN", ""); err != nil {
		return nil, err
	}

	// Push connection
	if err := loadEnvDuration(&config.ReconnectDelay, "RECONNECT_DELAY", realtime.DefaultReconnectDelay); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.HeartbeatIncoming, "HEARTBEAT_INCOMING", realtime.DefaultHeartbeatIncoming); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.HeartbeatOutgoing, "HEARTBEAT_OUTGOING", realtime.DefaultHeartbeatOutgoing); err != nil {
		return nil, err
	}

	// Redis
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.CacheTTL, "CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if err := loadEnvInt(&config.StatusPort, "STATUS_PORT", 8084); err != nil {
		return nil, err
	}

	// Toasts
	if err := loadEnvFloat(&config.ToastRate, "TOAST_RATE", 2); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ToastBurst, "TOAST_BURST", 5); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, "API_URL must be an absolute http(s) URL")
	}
	if u, err := url.Parse(c.BrokerURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		errors = append(errors, "BROKER_URL must be an absolute ws(s) URL")
	}

	if c.StatusPort < 1 || c.StatusPort > 65535 {
		errors = append(errors, "STATUS_PORT must be between 1 and 65535")
	}
	if c.HTTPTimeout <= 0 {
		errors = append(errors, "HTTP_TIMEOUT must be positive")
	}
	if c.ReconnectDelay < 0 || c.HeartbeatIncoming < 0 || c.HeartbeatOutgoing < 0 {
		errors = append(errors, "RECONNECT_DELAY and HEARTBEAT_* must not be negative")
	}
	if c.APIRateLimit < 0 || c.ToastRate < 0 {
		errors = append(errors, "API_RATE_LIMIT and TOAST_RATE must not be negative")
	}
	if c.PageSize < 1 {
		errors = append(errors, "PAGE_SIZE must be at least 1")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	// Validate log format
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// ReconnectPolicy returns the push connection policy.
func (c *Config) ReconnectPolicy() realtime.ReconnectPolicy {
	return realtime.ReconnectPolicy{
		Delay:             c.ReconnectDelay,
		HeartbeatIncoming: c.HeartbeatIncoming,
		HeartbeatOutgoing: c.HeartbeatOutgoing,
	}
}

// CacheEnabled reports whether a Redis URL is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
