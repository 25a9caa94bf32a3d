package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the scheduling core.
type Config struct {
	Environment string
	Port        int
	LogLevel    string
	Database    DatabaseConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Prediction  PredictionConfig

	// BookingTimeout bounds how long a single Schedule/Reschedule call may
	// run before it gives up rather than hold a transaction open
	// indefinitely.
	BookingTimeout time.Duration
	// TransientRetryMax bounds how many times a retryable repository error
	// is retried before it is surfaced as a RetryableError to the caller.
	TransientRetryMax int
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL string
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string
}

// PredictionConfig holds the prediction service's HTTP configuration.
type PredictionConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		port = 8080
	}
	bookingTimeout, err := time.ParseDuration(getEnv("BOOKING_TIMEOUT", "5s"))
	if err != nil {
		bookingTimeout = 5 * time.Second
	}
	predictionTimeout, err := time.ParseDuration(getEnv("PREDICTION_SERVICE_TIMEOUT", "2s"))
	if err != nil {
		predictionTimeout = 2 * time.Second
	}
	retryMax, err := strconv.Atoi(getEnv("TRANSIENT_RETRY_MAX", "3"))
	if err != nil {
		retryMax = 3
	}

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "postgres://localhost:5432/scheduling_core?sslmode=disable"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Prediction: PredictionConfig{
			BaseURL: getEnv("PREDICTION_SERVICE_URL", ""),
			Timeout: predictionTimeout,
		},
		BookingTimeout:    bookingTimeout,
		TransientRetryMax: retryMax,
	}, nil
}

// getEnv gets an environment variable with a fallback value.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
