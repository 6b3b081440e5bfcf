package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/diewo77/sellhub/internal/events"
	"github.com/diewo77/sellhub/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid cross-test collisions.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, qty int, price string) models.Product {
	t.Helper()
	p := models.Product{Name: name, Category: "Test", Quantity: qty, Price: decimal.RequireFromString(price)}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func stockOf(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var p models.Product
	if err := db.Unscoped().First(&p, id).Error; err != nil {
		t.Fatalf("reload product %d: %v", id, err)
	}
	return p.Quantity
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	events []events.OrderPlaced
}

func (r *recordingPublisher) Publish(_ context.Context, topic, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.keys = append(r.keys, key)
	if evt, ok := event.(events.OrderPlaced); ok {
		r.events = append(r.events, evt)
	}
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
