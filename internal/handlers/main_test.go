package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/sellhub/internal/cart"
	"github.com/diewo77/sellhub/internal/idempotency"
	"github.com/diewo77/sellhub/internal/models"
	"github.com/diewo77/sellhub/internal/services"
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

// testRouter mounts the handlers on the same patterns the server uses.
func testRouter(t *testing.T, db *gorm.DB) http.Handler {
	t.Helper()
	catalog := services.NewCatalogService(db)
	orders := services.NewOrderService(db, nil, "")
	idem := idempotency.NewMemoryStore(time.Hour)

	ph := NewProductHandler(catalog)
	oh := NewOrderHandler(orders, idem)
	ch := NewCartHandler(cart.NewSessions(time.Hour), catalog, orders, idem, time.Hour, false)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", ph.List)
	mux.HandleFunc("POST /api/products", ph.Create)
	mux.HandleFunc("GET /api/products/{id}", ph.View)
	mux.HandleFunc("PATCH /api/products/{id}", ph.Update)
	mux.HandleFunc("DELETE /api/products/{id}", ph.Delete)
	mux.HandleFunc("GET /api/orders", oh.List)
	mux.HandleFunc("POST /api/orders", oh.Create)
	mux.HandleFunc("GET /api/orders/{id}", oh.View)
	mux.HandleFunc("GET /api/cart", ch.Get)
	mux.HandleFunc("DELETE /api/cart", ch.Clear)
	mux.HandleFunc("POST /api/cart/items", ch.AddItem)
	mux.HandleFunc("PATCH /api/cart/items/{productId}", ch.UpdateQuantity)
	mux.HandleFunc("DELETE /api/cart/items/{productId}", ch.RemoveItem)
	mux.HandleFunc("POST /api/cart/checkout", ch.Checkout)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func seedProduct(t *testing.T, db *gorm.DB, name string, qty int, price string) models.Product {
	t.Helper()
	p := models.Product{Name: name, Category: "Test", Quantity: qty, Price: decimal.RequireFromString(price)}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}
