package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_PORT", "DB_NAME", "KAFKA_BROKERS", "REDIS_URL", "IDEMPOTENCY_TTL", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.Port != 5433 || cfg.Database.DBName != "sellhub" {
		t.Errorf("unexpected database defaults: %+v", cfg.Database)
	}
	if len(cfg.Kafka.Brokers) != 0 || cfg.Kafka.OrdersTopic != "orders.placed" {
		t.Errorf("unexpected kafka defaults: %+v", cfg.Kafka)
	}
	if cfg.App.IdempotencyTTL != 24*time.Hour {
		t.Errorf("IdempotencyTTL = %v", cfg.App.IdempotencyTTL)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"*"}) {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DEBUG", "yes")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("CART_TTL", "30m")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-number")

	cfg := Load()
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if !cfg.Database.Debug {
		t.Errorf("Debug should be true")
	}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.App.CartTTL != 30*time.Minute {
		t.Errorf("CartTTL = %v", cfg.App.CartTTL)
	}
	if cfg.Server.ReadTimeout != 15 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.Server.ReadTimeout)
	}
}

func TestDatabaseURLs(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "shop", SSLMode: "disable"}
	if got := d.DSN(); got != "host=db port=5432 user=u password=p dbname=shop sslmode=disable" {
		t.Errorf("DSN() = %q", got)
	}
	if got := d.URL(); got != "postgres://u:p@db:5432/shop?sslmode=disable" {
		t.Errorf("URL() = %q", got)
	}
}
