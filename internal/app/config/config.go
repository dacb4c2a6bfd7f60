// Package config loads the service configuration with viper.
// Defaults are overridden by an optional config file, which is overridden by environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig
	TwelveData TwelveDataConfig
	Pacing     PacingConfig
	Symbols    map[string]string // platform code -> provider code, merged over the built-in table
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	JWT        JWTConfig
	Ingest     IngestConfig
	Logging    LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// TwelveDataConfig holds the quote provider settings
type TwelveDataConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// PacingConfig holds the provider rate limit settings.
// MinGap spaces the calls of one snapshot; RequestsPerMinute is shared by every caller of the key.
type PacingConfig struct {
	MinGap            time.Duration
	RequestsPerMinute int
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	Driver         string
	DSN            string
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	ConnectTimeout time.Duration
	AutoMigrate    bool
}

// RedisConfig holds cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // 0 = until the next bar opens
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	ClientID string
}

// JWTConfig holds the verification secret shared with the auth service
type JWTConfig struct {
	Secret string
}

// IngestConfig holds the batch ingest settings
type IngestConfig struct {
	Symbols     []string
	Count       int
	Concurrency int
	Timeout     time.Duration
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"server.port":              "SERVER_PORT",
	"server.readTimeout":       "SERVER_READ_TIMEOUT",
	"server.writeTimeout":      "SERVER_WRITE_TIMEOUT",
	"server.shutdownTimeout":   "SERVER_SHUTDOWN_TIMEOUT",
	"twelveData.apiKey":        "TWELVE_DATA_API_KEY",
	"twelveData.baseURL":       "TWELVE_DATA_BASE_URL",
	"twelveData.timeout":       "TWELVE_DATA_TIMEOUT",
	"pacing.minGap":            "PACING_MIN_GAP",
	"pacing.requestsPerMinute": "PACING_REQUESTS_PER_MINUTE",
	"database.driver":          "DB_DRIVER",
	"database.dsn":             "DB_DSN",
	"database.host":            "DB_HOST",
	"database.port":            "DB_PORT",
	"database.user":            "DB_USER",
	"database.password":        "DB_PASSWORD",
	"database.name":            "DB_NAME",
	"database.sslMode":         "DB_SSLMODE",
	"database.connectTimeout":  "DB_CONNECT_TIMEOUT",
	"database.autoMigrate":     "RUN_MIGRATIONS",
	"redis.addr":               "REDIS_ADDR",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"redis.ttl":                "CACHE_TTL",
	"kafka.enabled":            "KAFKA_ENABLED",
	"kafka.brokers":            "KAFKA_BROKERS",
	"kafka.topic":              "KAFKA_TOPIC",
	"kafka.clientID":           "KAFKA_CLIENT_ID",
	"jwt.secret":               "JWT_SECRET",
	"ingest.symbols":           "INGEST_SYMBOLS",
	"ingest.count":             "INGEST_COUNT",
	"ingest.concurrency":       "INGEST_CONCURRENCY",
	"ingest.timeout":           "INGEST_TIMEOUT",
	"logging.level":            "LOG_LEVEL",
	"logging.format":           "LOG_FORMAT",
}

// LoadConfig loads the configuration from an optional file and environment variables.
// An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Ingest.Symbols = splitList(cfg.Ingest.Symbols)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "60s")
	v.SetDefault("server.shutdownTimeout", "10s")

	// Provider defaults
	v.SetDefault("twelveData.apiKey", "")
	v.SetDefault("twelveData.baseURL", "https://api.twelvedata.com")
	v.SetDefault("twelveData.timeout", "10s")

	// 無料プランは8リクエスト/分
	v.SetDefault("pacing.minGap", "1s")
	v.SetDefault("pacing.requestsPerMinute", 8)

	v.SetDefault("symbols", map[string]string{})

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "market")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.connectTimeout", "60s")
	v.SetDefault("database.autoMigrate", false)

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "0s")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "snapshot-events")
	v.SetDefault("kafka.clientID", "market-backend")

	v.SetDefault("jwt.secret", "")

	// Ingest defaults
	v.SetDefault("ingest.symbols", []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD", "BTCUSD"})
	v.SetDefault("ingest.count", 200)
	v.SetDefault("ingest.concurrency", 2)
	v.SetDefault("ingest.timeout", "5m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// splitList accepts both YAML lists and a single comma separated env value.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// SlogLevel parses Level, falling back to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewLogger builds the process logger: JSON by default, text when Format is "text".
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
