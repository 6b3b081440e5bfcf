package handlers

import (
	"net/http"

	"github.com/diewo77/sellhub/httpx"
	"github.com/diewo77/sellhub/internal/services"
)

type ProductHandler struct {
	svc *services.CatalogService
}

func NewProductHandler(svc *services.CatalogService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// List: GET /api/products?q=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.List(r.Context(), services.ListFilter{Query: r.URL.Query().Get("q")})
	if err != nil {
		writeError(w, r, err, "failed_to_list_products")
		return
	}
	httpx.List(w, products)
}

// Create: POST /api/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.ProductInput
	if !decode(w, r, &input) {
		return
	}
	p, err := h.svc.Create(r.Context(), input)
	if err != nil {
		writeError(w, r, err, "product_create_failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

// View: GET /api/products/{id}
func (h *ProductHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "failed_to_load_product")
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Update: PATCH or PUT /api/products/{id}, only supplied fields change.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var patch services.ProductPatch
	if !decode(w, r, &patch) {
		return
	}
	p, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err, "update_failed")
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Delete: DELETE /api/products/{id} (soft delete)
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "delete_failed")
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
