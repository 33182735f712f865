// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Gemini classifier settings
	GeminiAPIKey   string        // Optional; keyword engine handles everything without it
	GeminiEndpoint string        // generateContent URL, key appended as query param
	GeminiTimeout  time.Duration // Hard deadline for one classification call

	// Keyword rules
	RulesPath string // Optional YAML rules file; embedded defaults otherwise

	// Guardian alerting
	GuardianWebhookURL string // Optional; freeze/decision events POSTed here

	// Tracing
	OTLPEndpoint string

	// Security
	RateLimitRPM   int
	AllowedOrigins string // Comma-separated, "*" for all
}

const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"
	DefaultGeminiTimeout  = 15 * time.Second
	DefaultRateLimitRPM   = 60
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiEndpoint:     getEnv("GEMINI_ENDPOINT", DefaultGeminiEndpoint),
		GeminiTimeout:      getEnvDuration("GEMINI_TIMEOUT", DefaultGeminiTimeout),
		RulesPath:          os.Getenv("SHIELD_RULES_PATH"),
		GuardianWebhookURL: os.Getenv("GUARDIAN_WEBHOOK_URL"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM:       int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	if c.GeminiAPIKey != "" && c.GeminiEndpoint == "" {
		return fmt.Errorf("GEMINI_ENDPOINT must not be empty when GEMINI_API_KEY is set")
	}
	if c.GeminiTimeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT must be positive")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}
	return nil
}

// AIEnabled reports whether the Gemini classifier should be attempted.
func (c *Config) AIEnabled() bool {
	return c.GeminiAPIKey != ""
}

// Origins returns the allowed CORS origins as a slice.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
