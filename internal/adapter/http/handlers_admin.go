package http

import (
	"net/http"

	"github.com/Strob0t/linkshop/internal/domain/coupon"
)

// GetPlan handles GET /api/admin/plan
func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	view, err := h.Plans.View(r.Context(), p.TenantID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AnalyticsSummary handles GET /api/admin/analytics/summary
func (h *Handlers) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	s, err := h.Analytics.Summary(r.Context(), p.TenantID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// AnalyticsDaily handles GET /api/admin/analytics/daily?days=
func (h *Handlers) AnalyticsDaily(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "days", 0)
	if !ok {
		return
	}
	buckets, err := h.Analytics.Daily(r.Context(), p.TenantID, days)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

// ListCoupons handles GET /api/admin/coupons
func (h *Handlers) ListCoupons(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	cs, err := h.Coupons.List(r.Context(), p.TenantID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// CreateCoupon handles POST /api/admin/coupons
func (h *Handlers) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[coupon.CreateRequest](w, r)
	if !ok {
		return
	}
	c, err := h.Coupons.Create(r.Context(), p.TenantID, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListCustomers handles GET /api/admin/customers
func (h *Handlers) ListCustomers(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	rs, err := h.Customers.List(r.Context(), p.TenantID, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// LiveFeed handles GET /api/admin/ws. The connection only ever receives
// events of the admin's own tenant.
func (h *Handlers) LiveFeed(w http.ResponseWriter, r *http.Request) {
	p, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	h.Hub.Serve(w, r, p.TenantID)
}
