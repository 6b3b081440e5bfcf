package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/diewo77/sellhub/httpx"
	"github.com/diewo77/sellhub/internal/idempotency"
	"github.com/diewo77/sellhub/internal/models"
	"github.com/diewo77/sellhub/internal/services"
)

// IdempotencyHeader lets clients retry order submissions safely.
const IdempotencyHeader = "Idempotency-Key"

type OrderHandler struct {
	svc  *services.OrderService
	idem idempotency.Store
}

// NewOrderHandler wires the handler. A nil store disables idempotency keys.
func NewOrderHandler(svc *services.OrderService, idem idempotency.Store) *OrderHandler {
	return &OrderHandler{svc: svc, idem: idem}
}

type createOrderRequest struct {
	Items []services.OrderItemInput `json:"items"`
}

// Create: POST /api/orders, answers with the order header only.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decode(w, r, &req) {
		return
	}
	order, replayed, err := placeOrder(r.Context(), h.svc, h.idem, r.Header.Get(IdempotencyHeader), req.Items)
	if err != nil {
		writeError(w, r, err, "order_create_failed")
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	httpx.JSON(w, status, order)
}

// List: GET /api/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err, "failed_to_list_orders")
		return
	}
	httpx.List(w, orders)
}

// View: GET /api/orders/{id}
func (h *OrderHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "failed_to_load_order")
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// placeOrder creates an order at most once per idempotency key. replayed is
// true when the key already produced an order, which is returned instead.
func placeOrder(ctx context.Context, svc *services.OrderService, store idempotency.Store, key string, items []services.OrderItemInput) (*models.Order, bool, error) {
	if key == "" || store == nil {
		order, err := svc.Create(ctx, items)
		return order, false, err
	}
	if err := idempotency.ValidKey(key); err != nil {
		return nil, false, err
	}
	existing, err := store.Reserve(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing > 0 {
		order, err := svc.Header(ctx, existing)
		return order, true, err
	}

	order, err := svc.Create(ctx, items)
	if err != nil {
		if rerr := store.Release(context.WithoutCancel(ctx), key); rerr != nil {
			slog.WarnContext(ctx, "release idempotency key", "err", rerr)
		}
		return nil, false, err
	}
	if cerr := store.Complete(context.WithoutCancel(ctx), key, order.ID); cerr != nil {
		slog.WarnContext(ctx, "complete idempotency key", "order_id", order.ID, "err", cerr)
	}
	return order, false, nil
}
