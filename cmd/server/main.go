package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/sellhub/internal/cart"
	"github.com/diewo77/sellhub/internal/config"
	"github.com/diewo77/sellhub/internal/db"
	"github.com/diewo77/sellhub/internal/events"
	"github.com/diewo77/sellhub/internal/idempotency"
	"github.com/diewo77/sellhub/internal/services"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

// sweepInterval is how often expired cart sessions are dropped.
const sweepInterval = 5 * time.Minute

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg.App))

	dbConn, err := db.Open(cfg.Database)
	if err != nil {
		fatal("failed to connect to database", err)
	}

	if *migrateOnlyFlag {
		if err := migrate(dbConn, cfg); err != nil {
			fatal("migration failed", err)
		}
		slog.Info("migrations completed successfully")
		return
	}

	if *seedOnlyFlag {
		if err := db.Seed(dbConn); err != nil {
			fatal("seeding failed", err)
		}
		slog.Info("seeding completed successfully")
		return
	}

	if err := migrate(dbConn, cfg); err != nil {
		fatal("migration failed", err)
	}
	if cfg.App.Seed {
		if err := db.Seed(dbConn); err != nil {
			fatal("seeding failed", err)
		}
	}

	publisher := events.New(cfg.Kafka.Brokers)
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("close event publisher", "err", err)
		}
	}()

	idem, closeIdem := idempotencyStore(cfg)
	defer closeIdem()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := cart.NewSessions(cfg.App.CartTTL)
	go sessions.Janitor(ctx, sweepInterval)

	app := NewApp(Deps{
		DB:           dbConn,
		Catalog:      services.NewCatalogService(dbConn),
		Orders:       services.NewOrderService(dbConn, publisher, cfg.Kafka.OrdersTopic),
		Idempotency:  idem,
		Sessions:     sessions,
		CartTTL:      cfg.App.CartTTL,
		SecureCookie: !cfg.App.Dev,
		CORSOrigins:  cfg.Server.CORSOrigins,
	})

	// Create server with config timeouts
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "dev", cfg.App.Dev)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "err", err)
	}
	slog.Info("server stopped gracefully")
}

// migrate applies the SQL migrations on PostgreSQL when MIGRATIONS is set,
// and GORM's AutoMigrate otherwise.
func migrate(conn *gorm.DB, cfg *config.Config) error {
	if cfg.App.Migrations && cfg.Database.Driver == config.DriverPostgres {
		return db.MigrateSQL(cfg.Database.URL())
	}
	return db.Migrate(conn)
}

// idempotencyStore picks Redis when configured, the in-memory store otherwise.
func idempotencyStore(cfg *config.Config) (idempotency.Store, func()) {
	if cfg.Redis.URL == "" {
		return idempotency.NewMemoryStore(cfg.App.IdempotencyTTL), func() {}
	}
	store, err := idempotency.NewRedisStore(cfg.Redis.URL, cfg.App.IdempotencyTTL)
	if err != nil {
		fatal("failed to connect to redis", err)
	}
	slog.Info("idempotency keys stored in redis")
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("close redis", "err", err)
		}
	}
}

func newLogger(app config.AppConfig) *slog.Logger {
	var level slog.Level
	switch app.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if app.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
