// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
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

	// Decision thresholds
	MediumRiskThreshold float64 // adaptive; recalibrated from feedback
	HighRiskThreshold   float64 // fixed; decline boundary

	// Calibration
	TargetPrecision     float64
	TargetRecall        float64
	MinFeedbackSamples  int
	CalibrationInterval time.Duration

	// Engine capacities
	WindowCapacity    int
	LatencyBufferSize int
	ScorerTimeout     time.Duration
	EntityTTL         time.Duration // idle windows older than this are evicted; 0 disables

	// API
	RateLimitRPM int

	// Observability
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort                = "8080"
	DefaultEnv                 = "development"
	DefaultLogLevel            = "info"
	DefaultMediumRiskThreshold = 0.5
	DefaultHighRiskThreshold   = 0.9
	DefaultTargetPrecision     = 0.95
	DefaultTargetRecall        = 0.90
	DefaultMinFeedbackSamples  = 100
	DefaultWindowCapacity      = 100
	DefaultLatencyBufferSize   = 1000
	DefaultRateLimitRPM        = 600
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		MediumRiskThreshold: getEnvFloat("MEDIUM_RISK_THRESHOLD", DefaultMediumRiskThreshold),
		HighRiskThreshold:   getEnvFloat("HIGH_RISK_THRESHOLD", DefaultHighRiskThreshold),
		TargetPrecision:     getEnvFloat("TARGET_PRECISION", DefaultTargetPrecision),
		TargetRecall:        getEnvFloat("TARGET_RECALL", DefaultTargetRecall),
		MinFeedbackSamples:  getEnvInt("MIN_FEEDBACK_SAMPLES", DefaultMinFeedbackSamples),
		CalibrationInterval: getEnvDuration("CALIBRATION_INTERVAL", 5*time.Minute),
		WindowCapacity:      getEnvInt("WINDOW_CAPACITY", DefaultWindowCapacity),
		LatencyBufferSize:   getEnvInt("LATENCY_BUFFER_SIZE", DefaultLatencyBufferSize),
		ScorerTimeout:       getEnvDuration("SCORER_TIMEOUT", 50*time.Millisecond),
		EntityTTL:           getEnvDuration("ENTITY_TTL", 0),
		RateLimitRPM:        getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.MediumRiskThreshold < 0 || c.MediumRiskThreshold > 1 {
		return fmt.Errorf("MEDIUM_RISK_THRESHOLD must be in [0, 1], got %f", c.MediumRiskThreshold)
	}
	if c.HighRiskThreshold < 0 || c.HighRiskThreshold > 1 {
		return fmt.Errorf("HIGH_RISK_THRESHOLD must be in [0, 1], got %f", c.HighRiskThreshold)
	}
	if c.MediumRiskThreshold > c.HighRiskThreshold {
		return fmt.Errorf("MEDIUM_RISK_THRESHOLD (%f) must not exceed HIGH_RISK_THRESHOLD (%f)",
			c.MediumRiskThreshold, c.HighRiskThreshold)
	}
	if c.TargetPrecision <= 0 || c.TargetPrecision > 1 {
		return fmt.Errorf("TARGET_PRECISION must be in (0, 1], got %f", c.TargetPrecision)
	}
	if c.TargetRecall <= 0 || c.TargetRecall > 1 {
		return fmt.Errorf("TARGET_RECALL must be in (0, 1], got %f", c.TargetRecall)
	}
	if c.WindowCapacity <= 0 {
		return fmt.Errorf("WINDOW_CAPACITY must be positive, got %d", c.WindowCapacity)
	}
	if c.LatencyBufferSize <= 0 {
		return fmt.Errorf("LATENCY_BUFFER_SIZE must be positive, got %d", c.LatencyBufferSize)
	}
	if c.MinFeedbackSamples <= 0 {
		return fmt.Errorf("MIN_FEEDBACK_SAMPLES must be positive, got %d", c.MinFeedbackSamples)
	}
	if c.ScorerTimeout <= 0 {
		return fmt.Errorf("SCORER_TIMEOUT must be positive, got %s", c.ScorerTimeout)
	}
	return nil
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
