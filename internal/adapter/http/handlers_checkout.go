package http

import (
	"net/http"

	"github.com/Strob0t/linkshop/internal/domain/draft"
	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/middleware"
)

// Checkout handles POST /api/checkout
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[order.CheckoutRequest](w, r)
	if !ok {
		return
	}
	var userID string
	if u := middleware.CustomerFromContext(r.Context()); u != nil {
		userID = u.UserID
	}

	o, err := h.Orders.Checkout(r.Context(), t.ID, userID, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.Recovery.Discard(r.Context(), t.ID, r.Header.Get(HeaderCheckoutSession))
	writeJSON(w, http.StatusCreated, o)
}

// SaveDraft handles PUT /api/checkout/draft
func (h *Handlers) SaveDraft(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[draft.SaveRequest](w, r)
	if !ok {
		return
	}
	d, err := h.Recovery.SaveDraft(r.Context(), t.ID, r.Header.Get(HeaderCheckoutSession), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListDrafts handles GET /api/admin/checkout-drafts
func (h *Handlers) ListDrafts(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	ds, err := h.Recovery.List(r.Context(), p.TenantID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}
