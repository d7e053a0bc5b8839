// Package config reads all application configuration from environment
// variables, optionally preloaded from a .env file. Only this package
// calls os.Getenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the pipeline binaries.
type Config struct {
	Env string // development, staging, production

	Market     MarketConfig
	Engine     EngineConfig
	Postgres   PostgresConfig
	Clickhouse ClickhouseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Scheduler  SchedulerConfig

	LogLevel    string
	MetricsPort string
}

// MarketConfig controls exchange data fetching.
type MarketConfig struct {
	BaseURL      string
	StreamURL    string
	QuoteAsset   string
	TopSymbols   int
	KlineLimit   int
	FetchTimeout time.Duration
}

// EngineConfig controls correlation discovery and classification.
type EngineConfig struct {
	MaxLag         int
	Threshold      float64
	IncludeZeroLag bool
	Workers        int
}

// PostgresConfig holds leadership graph database settings.
type PostgresConfig struct {
	URL     string
	Enabled bool
}

// ClickhouseConfig holds history sink settings.
type ClickhouseConfig struct {
	DSN          string
	Enabled      bool
	MaxSnapshots int
	MaxSignals   int
}

// RedisConfig holds latest-snapshot cache settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Enabled  bool
}

// KafkaConfig holds signal publishing settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// SchedulerConfig controls the cron driver.
type SchedulerConfig struct {
	// CronSpec is a standard 5-field cron expression.
	CronSpec string
}

// Load reads configuration from environment variables, preloading .env
// from the working directory when present.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Market: MarketConfig{
			BaseURL:      getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
			StreamURL:    getEnv("BINANCE_STREAM_URL", "wss://stream.binance.com:9443/stream"),
			QuoteAsset:   getEnv("QUOTE_ASSET", "USDT"),
			TopSymbols:   getEnvAsInt("TOP_SYMBOLS", 50),
			KlineLimit:   getEnvAsInt("KLINE_LIMIT", 500),
			FetchTimeout: getEnvAsDuration("FETCH_TIMEOUT", "2m"),
		},

		Engine: EngineConfig{
			MaxLag:         getEnvAsInt("MAX_LAG", 60),
			Threshold:      getEnvAsFloat("CORRELATION_THRESHOLD", 0.7),
			IncludeZeroLag: getEnvAsBool("INCLUDE_ZERO_LAG", false),
			Workers:        getEnvAsInt("ENGINE_WORKERS", 0),
		},

		Postgres: PostgresConfig{
			URL:     getEnv("DATABASE_URL", ""),
			Enabled: getEnvAsBool("POSTGRES_ENABLED", true),
		},

		Clickhouse: ClickhouseConfig{
			DSN:          getEnv("CLICKHOUSE_DSN", ""),
			Enabled:      getEnvAsBool("CLICKHOUSE_ENABLED", true),
			MaxSnapshots: getEnvAsInt("MAX_SNAPSHOT_ROWS", 5000),
			MaxSignals:   getEnvAsInt("MAX_SIGNAL_ROWS", 5000),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_SNAPSHOT_TTL", "10m"),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_SIGNAL_TOPIC", "leadlag.signals"),
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
		},

		Scheduler: SchedulerConfig{
			CronSpec: getEnv("CRON_SPEC", "*/15 * * * *"),
		},

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Postgres.Enabled && c.Postgres.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when POSTGRES_ENABLED")
	}
	if c.Clickhouse.Enabled && c.Clickhouse.DSN == "" {
		return fmt.Errorf("CLICKHOUSE_DSN is required when CLICKHOUSE_ENABLED")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED")
	}
	if c.Engine.MaxLag <= 0 {
		return fmt.Errorf("MAX_LAG must be positive")
	}
	if c.Engine.Threshold < 0 || c.Engine.Threshold > 1 {
		return fmt.Errorf("CORRELATION_THRESHOLD must be in [0, 1]")
	}
	return nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
