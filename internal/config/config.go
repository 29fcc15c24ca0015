package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Bounds for HISTORY_LIMIT. A room never keeps more than 100 messages and
// must keep at least the 50 served by the messages API.
const (
	MinHistoryLimit = 50
	MaxHistoryLimit = 100
)

// Config holds application configuration
type Config struct {
	Port           string
	AllowedOrigins string
	Environment    string // development, staging, production

	LogLevel  string
	LogFormat string

	// Optional integrations; empty disables them
	DatabaseURL string
	RabbitMQURL string

	HistoryLimit      int     // messages kept in memory per room
	EventRate         float64 // inbound events per second per connection, 0 disables
	EventBurst        int
	OpenAPIValidation bool
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "5000"),
		AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		HistoryLimit:      MaxHistoryLimit,
		EventRate:         10,
		EventBurst:        20,
		OpenAPIValidation: true,
	}

	var errs []error
	cfg.HistoryLimit, errs = getInt("HISTORY_LIMIT", cfg.HistoryLimit, errs)
	cfg.EventBurst, errs = getInt("EVENT_BURST", cfg.EventBurst, errs)
	cfg.EventRate, errs = getFloat("EVENT_RATE", cfg.EventRate, errs)
	cfg.OpenAPIValidation, errs = getBool("OPENAPI_VALIDATION", cfg.OpenAPIValidation, errs)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for security and correctness
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.HistoryLimit < MinHistoryLimit || c.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("HISTORY_LIMIT must be between %d and %d (got %d)",
			MinHistoryLimit, MaxHistoryLimit, c.HistoryLimit)
	}
	if c.EventRate < 0 {
		return fmt.Errorf("EVENT_RATE must not be negative (got %g)", c.EventRate)
	}
	if c.EventRate > 0 && c.EventBurst <= 0 {
		return fmt.Errorf("EVENT_BURST must be positive when EVENT_RATE is set (got %d)", c.EventBurst)
	}

	// Production must name its origins explicitly
	if c.IsProduction() {
		for _, origin := range c.Origins() {
			if origin == "*" {
				return errors.New("ALLOWED_ORIGINS must not contain * in production")
			}
		}
	}

	return nil
}

// Origins returns the allowed origins as a list
func (c *Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev" || c.Environment == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs []error) (int, []error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, errs
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, append(errs, fmt.Errorf("%s: invalid integer %q", key, value))
	}
	return n, errs
}

func getFloat(key string, defaultValue float64, errs []error) (float64, []error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, errs
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, append(errs, fmt.Errorf("%s: invalid number %q", key, value))
	}
	return f, errs
}

func getBool(key string, defaultValue bool, errs []error) (bool, []error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, errs
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, append(errs, fmt.Errorf("%s: invalid boolean %q", key, value))
	}
	return b, errs
}
