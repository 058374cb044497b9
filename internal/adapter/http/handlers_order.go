package http

import (
	"net/http"
	"time"

	"github.com/Strob0t/linkshop/internal/domain/order"
	"github.com/Strob0t/linkshop/internal/middleware"
)

// listFilter reads status, since, limit and offset from the query string.
func listFilter(w http.ResponseWriter, r *http.Request) (order.ListFilter, bool) {
	var f order.ListFilter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		st, err := order.ParseStatus(raw)
		if err != nil {
			writeDomainError(w, r, err)
			return f, false
		}
		f.Status = st
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "since must be an RFC 3339 timestamp")
			return f, false
		}
		f.Since = since
	}
	var ok bool
	if f.Limit, ok = queryInt(w, r, "limit", 0); !ok {
		return f, false
	}
	if f.Offset, ok = queryInt(w, r, "offset", 0); !ok {
		return f, false
	}
	return f, true
}

// ListOrders handles GET /api/admin/orders
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	f, ok := listFilter(w, r)
	if !ok {
		return
	}
	orders, err := h.Orders.List(r.Context(), p.TenantID, f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// CountOrders handles GET /api/admin/orders/count
func (h *Handlers) CountOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	f, ok := listFilter(w, r)
	if !ok {
		return
	}
	n, err := h.Orders.Count(r.Context(), p.TenantID, f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// GetOrder handles GET /api/admin/orders/{id}
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.Get(r.Context(), p.TenantID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// ConfirmPayment handles POST /api/admin/orders/{id}/confirm-payment
func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.ConfirmPayment(r.Context(), p.TenantID, urlParam(r, "id"), p.Actor())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// UpdateOrderStatus handles POST /api/admin/orders/{id}/status
func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[order.TransitionRequest](w, r)
	if !ok {
		return
	}
	to, err := order.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	o, err := h.Orders.Transition(r.Context(), p.TenantID, urlParam(r, "id"), to, p.Actor())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// TrackOrder handles GET /api/orders/{id}/track
func (h *Handlers) TrackOrder(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	tracking, err := h.Orders.Track(r.Context(), t.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracking)
}

// SearchOrders handles GET /api/orders/search?phone=
func (h *Handlers) SearchOrders(w http.ResponseWriter, r *http.Request) {
	t, ok := currentTenant(w, r)
	if !ok {
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "phone is required")
		return
	}
	results, err := h.Orders.SearchByPhone(r.Context(), t.ID, phone)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// MyOrders handles GET /api/orders/mine
func (h *Handlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	u := middleware.CustomerFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "please sign in")
		return
	}
	orders, err := h.Orders.ListMine(r.Context(), u.TenantID, u.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
