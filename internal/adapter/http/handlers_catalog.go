package http

import (
	"net/http"

	"github.com/Strob0t/linkshop/internal/domain/product"
)

// GetShop handles GET /api/shop
func (h *Handlers) GetShop(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.Profile())
}

// ListPublicProducts handles GET /api/products
func (h *Handlers) ListPublicProducts(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	ps, err := h.Products.ListActive(r.Context(), t.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// GetPublicProduct handles GET /api/products/{id}
func (h *Handlers) GetPublicProduct(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	p, err := h.Products.GetPublic(r.Context(), t.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// TopSellers handles GET /api/top-sellers
func (h *Handlers) TopSellers(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	top, err := h.Analytics.TopSellers(r.Context(), t.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// ListProducts handles GET /api/admin/products
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	ps, err := h.Products.ListAll(r.Context(), p.TenantID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// CreateProduct handles POST /api/admin/products
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	in, ok := readJSON[product.Input](w, r)
	if !ok {
		return
	}
	created, err := h.Products.Create(r.Context(), p.TenantID, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateProduct handles PUT /api/admin/products/{id}
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	in, ok := readJSON[product.Input](w, r)
	if !ok {
		return
	}
	updated, err := h.Products.Update(r.Context(), p.TenantID, urlParam(r, "id"), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteProduct handles DELETE /api/admin/products/{id}. Products are
// deactivated, never removed, so past orders keep their references.
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	if err := h.Products.Delete(r.Context(), p.TenantID, urlParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
