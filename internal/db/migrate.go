package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/sellhub/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the GORM AutoMigrate schema. It is the development path and
// the one used by SQLite.
func Migrate(db *gorm.DB) error {
	for _, m := range []any{&models.Product{}, &models.Order{}, &models.OrderItem{}} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// MigrateSQL runs the embedded SQL migrations against a PostgreSQL URL.
func MigrateSQL(databaseURL string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
