// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
	CORSOrigins  []string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver         string
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	SQLitePath     string
	Debug          bool
	ConnectRetries int
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev            bool
	Migrations     bool
	Seed           bool
	LogLevel       string
	LogFormat      string
	IdempotencyTTL time.Duration
	CartTTL        time.Duration
}

// RedisConfig holds the optional Redis connection. An empty URL selects the
// in-memory idempotency store.
type RedisConfig struct {
	URL string
}

// KafkaConfig holds the optional event broker settings. No brokers means
// events are discarded.
type KafkaConfig struct {
	Brokers     []string
	OrdersTopic string
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5433),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "sellhub"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			SQLitePath:     getEnv("SQLITE_PATH", "sellhub.db"),
			Debug:          getEnvBool("DB_DEBUG", false),
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
		},
		App: AppConfig{
			Dev:            getEnvBool("DEV", true),
			Migrations:     getEnvBool("MIGRATIONS", false),
			Seed:           getEnvBool("DB_SEED", false),
			LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
			LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
			IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
			CartTTL:        getEnvDuration("CART_TTL", 2*time.Hour),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS", nil),
			OrdersTopic: getEnv("KAFKA_ORDERS_TOPIC", "orders.placed"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses a Go duration ("90s", "2h"); invalid values fall back to the default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
