package db

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/diewo77/sellhub/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var passwordRegex = regexp.MustCompile(`(password=|://[^:/@]+:)([^\s@]+)`)

// retryDelay is the pause between connection attempts.
var retryDelay = 2 * time.Second

// Open connects to the configured database, retrying while the server starts up.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, target, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	logLevel := logger.Warn
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	var conn *gorm.DB
	for i := 1; i <= attempts; i++ {
		conn, err = gorm.Open(dialector, gcfg)
		if err == nil {
			err = conn.Exec("SELECT 1").Error
		}
		if err == nil {
			break
		}
		slog.Warn("database not ready", "attempt", i, "of", attempts, "err", err)
		if i < attempts {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", attempts, err)
	}
	slog.Info("database connected", "driver", cfg.Driver, "target", MaskDSN(target))
	return conn, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, string, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		dsn := cfg.DSN()
		return postgres.Open(dsn), dsn, nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath), cfg.SQLitePath, nil
	default:
		return nil, "", fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// MaskDSN hides the password of a key=value or URL style DSN.
func MaskDSN(dsn string) string {
	return passwordRegex.ReplaceAllString(dsn, `${1}***`)
}
