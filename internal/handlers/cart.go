package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/diewo77/sellhub/httpx"
	"github.com/diewo77/sellhub/internal/cart"
	"github.com/diewo77/sellhub/internal/idempotency"
	"github.com/diewo77/sellhub/internal/models"
	"github.com/diewo77/sellhub/internal/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartCookie identifies the storefront session owning a cart.
const CartCookie = "sellhub_cart"

// CartHandler serves the storefront cart. Carts live in memory per session
// and do not hold stock; availability is only checked when adding a product.
type CartHandler struct {
	sessions *cart.Sessions
	catalog  *services.CatalogService
	orders   *services.OrderService
	idem     idempotency.Store
	ttl      time.Duration
	secure   bool
}

func NewCartHandler(sessions *cart.Sessions, catalog *services.CatalogService, orders *services.OrderService, idem idempotency.Store, ttl time.Duration, secureCookie bool) *CartHandler {
	return &CartHandler{sessions: sessions, catalog: catalog, orders: orders, idem: idem, ttl: ttl, secure: secureCookie}
}

// cartFor returns the session cart, issuing a session cookie on first use.
func (h *CartHandler) cartFor(w http.ResponseWriter, r *http.Request) *cart.Cart {
	if c, err := r.Cookie(CartCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return h.sessions.Get(c.Value)
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return h.sessions.Get(id)
}

// Get: GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.cartFor(w, r).Summary())
}

type addItemRequest struct {
	ProductID uint `json:"product_id"`
}

// AddItem: POST /api/cart/items puts one unit of a product in the cart.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"product_id": "required"})
		return
	}
	p, err := h.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, r, err, "failed_to_load_product")
		return
	}
	if p.IsDeleted() {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !p.InStock() {
		httpx.JSONError(w, http.StatusConflict, "out_of_stock", nil)
		return
	}
	c := h.cartFor(w, r)
	if err := c.AddItem(itemFromProduct(p)); err != nil {
		writeCartError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c.Summary())
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateQuantity: PATCH /api/cart/items/{productId}; zero or less removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	var req updateQuantityRequest
	if !decode(w, r, &req) {
		return
	}
	c := h.cartFor(w, r)
	if err := c.UpdateQuantity(id, req.Quantity); err != nil {
		writeCartError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c.Summary())
}

// RemoveItem: DELETE /api/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	c := h.cartFor(w, r)
	c.RemoveItem(id)
	httpx.JSON(w, http.StatusOK, c.Summary())
}

// Clear: DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	c := h.cartFor(w, r)
	c.Clear()
	httpx.JSON(w, http.StatusOK, c.Summary())
}

type checkoutResponse struct {
	Order    *models.Order   `json:"order"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Checkout: POST /api/cart/checkout places an order from the cart and takes
// the ordered lines out of it. A replayed idempotency key answers with the
// original order's totals and leaves the cart alone.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	c := h.cartFor(w, r)
	lines := c.Lines()
	order, replayed, err := placeOrder(r.Context(), h.orders, h.idem, r.Header.Get(IdempotencyHeader), cart.OrderItems(lines))
	if err != nil {
		writeError(w, r, err, "checkout_failed")
		return
	}
	if replayed {
		view, err := h.orders.Get(r.Context(), order.ID)
		if err != nil {
			writeError(w, r, err, "checkout_failed")
			return
		}
		shipping := cart.ShippingFor(view.TotalAmount, view.TotalItems)
		httpx.JSON(w, http.StatusOK, checkoutResponse{
			Order:    order,
			Subtotal: view.TotalAmount,
			Shipping: shipping,
			Total:    view.TotalAmount.Add(shipping),
		})
		return
	}

	c.Settle(lines)
	summary := cart.Totals(lines)
	httpx.JSON(w, http.StatusCreated, checkoutResponse{
		Order:    order,
		Subtotal: summary.Subtotal,
		Shipping: summary.Shipping,
		Total:    summary.Total,
	})
}

func itemFromProduct(p *models.Product) cart.Item {
	return cart.Item{ProductID: p.ID, Name: p.Name, Category: p.Category, Price: p.Price}
}

func writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrLineLimit):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"quantity": "line_quantity_limit"})
	case errors.Is(err, cart.ErrItemNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, cart.ErrInvalidItem):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_item", nil)
	default:
		writeError(w, r, err, "cart_update_failed")
	}
}
