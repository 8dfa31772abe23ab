/**
 * Configuration for the PDF extraction worker
 *
 * Loads configuration from environment variables (and .env via godotenv in main)
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Transports the worker can consume from.
const (
	TransportList  = "list"
	TransportAsynq = "asynq"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL  string
	QueueName string
	Transport string

	// PostgreSQL lineage store; empty disables it
	DatabaseURL string

	// Worker configuration
	WorkerConcurrency   int
	MaxDeliveryAttempts int
	MaxRecordSize       int64

	// Stage properties file (YAML mapping, order preserved)
	PropertiesFile string

	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "pdfextract:records"),
		Transport:           getEnvOrDefault("TRANSPORT", TransportList),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		MaxDeliveryAttempts: getEnvAsIntOrDefault("MAX_DELIVERY_ATTEMPTS", 3),
		MaxRecordSize:       getEnvAsInt64OrDefault("MAX_RECORD_SIZE", 104857600), // 100MB
		PropertiesFile:      getEnvOrDefault("PROPERTIES_FILE", "properties.yaml"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}

	if c.Transport != TransportList && c.Transport != TransportAsynq {
		return fmt.Errorf("TRANSPORT must be %q or %q, got %q", TransportList, TransportAsynq, c.Transport)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxDeliveryAttempts < 1 || c.MaxDeliveryAttempts > 20 {
		return fmt.Errorf("MAX_DELIVERY_ATTEMPTS must be between 1 and 20, got %d", c.MaxDeliveryAttempts)
	}

	if c.MaxRecordSize < 1024 || c.MaxRecordSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_RECORD_SIZE must be between 1KB and 1GB, got %d", c.MaxRecordSize)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
