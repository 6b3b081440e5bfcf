package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/sellhub/httpx"
	"github.com/diewo77/sellhub/internal/cart"
	"github.com/diewo77/sellhub/internal/handlers"
	"github.com/diewo77/sellhub/internal/idempotency"
	"github.com/diewo77/sellhub/internal/services"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

// requestTimeout bounds a single API request.
const requestTimeout = 30 * time.Second

// Deps carries what the routes need.
type Deps struct {
	DB           *gorm.DB
	Catalog      *services.CatalogService
	Orders       *services.OrderService
	Idempotency  idempotency.Store
	Sessions     *cart.Sessions
	CartTTL      time.Duration
	SecureCookie bool
	CORSOrigins  []string
}

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	deps    Deps
	handler http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(deps Deps) *App {
	app := &App{mux: http.NewServeMux(), deps: deps}
	app.setupRoutes()
	app.handler = middleware.RequestID(
		middleware.RealIP(
			withLogging(
				withRecover(
					withCORS(deps.CORSOrigins,
						middleware.Timeout(requestTimeout)(app.mux))))))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.HandleFunc("GET /health", a.health)
	a.mux.HandleFunc("GET /healthz", a.health)

	// ─────────────────────────────────────────────────────────────────────────
	// Catalog
	// ─────────────────────────────────────────────────────────────────────────
	ph := handlers.NewProductHandler(a.deps.Catalog)
	a.mux.HandleFunc("GET /api/products", ph.List)
	a.mux.HandleFunc("POST /api/products", ph.Create)
	a.mux.HandleFunc("GET /api/products/{id}", ph.View)
	a.mux.HandleFunc("PATCH /api/products/{id}", ph.Update)
	a.mux.HandleFunc("PUT /api/products/{id}", ph.Update)
	a.mux.HandleFunc("DELETE /api/products/{id}", ph.Delete)

	// ─────────────────────────────────────────────────────────────────────────
	// Orders
	// ─────────────────────────────────────────────────────────────────────────
	oh := handlers.NewOrderHandler(a.deps.Orders, a.deps.Idempotency)
	a.mux.HandleFunc("GET /api/orders", oh.List)
	a.mux.HandleFunc("POST /api/orders", oh.Create)
	a.mux.HandleFunc("GET /api/orders/{id}", oh.View)

	// ─────────────────────────────────────────────────────────────────────────
	// Storefront cart
	// ─────────────────────────────────────────────────────────────────────────
	ch := handlers.NewCartHandler(a.deps.Sessions, a.deps.Catalog, a.deps.Orders, a.deps.Idempotency, a.deps.CartTTL, a.deps.SecureCookie)
	a.mux.HandleFunc("GET /api/cart", ch.Get)
	a.mux.HandleFunc("DELETE /api/cart", ch.Clear)
	a.mux.HandleFunc("POST /api/cart/items", ch.AddItem)
	a.mux.HandleFunc("PATCH /api/cart/items/{productId}", ch.UpdateQuantity)
	a.mux.HandleFunc("DELETE /api/cart/items/{productId}", ch.RemoveItem)
	a.mux.HandleFunc("POST /api/cart/checkout", ch.Checkout)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.DB.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
		slog.WarnContext(r.Context(), "health check failed", "err", err)
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging middleware.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// withRecover turns a panic into a JSON 500.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.ErrorContext(r.Context(), "panic", "method", r.Method, "path", r.URL.Path, "panic", rec)
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withCORS allows the admin and storefront UIs to call the API from their own origins.
func withCORS(origins []string, next http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimSuffix(o, "/")] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key, X-Request-Id")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
