package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/linkshop/internal/adapter/ws"
	"github.com/Strob0t/linkshop/internal/domain/admin"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
	"github.com/Strob0t/linkshop/internal/middleware"
	"github.com/Strob0t/linkshop/internal/service"
)

// HeaderCheckoutSession identifies the browser checkout session a draft
// belongs to.
const HeaderCheckoutSession = "X-Checkout-Session"

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Tenants      *service.TenantService
	Plans        *service.PlanService
	Auth         *service.AuthService
	CustomerAuth *service.CustomerAuthService
	Orders       *service.OrderService
	Products     *service.ProductService
	Analytics    *service.AnalyticsService
	Coupons      *service.CouponService
	Customers    *service.CustomerService
	Recovery     *service.RecoveryService
	Hub          *ws.Hub

	// CookieSecure marks session cookies Secure. Disable only for local HTTP.
	CookieSecure bool
	// Ready reports whether backing services are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, CodeInternal, "service unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentTenant returns the tenant resolved by the Tenant middleware.
func currentTenant(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, bool) {
	t := middleware.TenantFromContext(r.Context())
	if t == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "shop not found")
		return nil, false
	}
	return t, true
}

// currentAdmin returns the authenticated principal. Handlers scope every
// query by its TenantID, never by a client-supplied value.
func currentAdmin(w http.ResponseWriter, r *http.Request) (*admin.Principal, bool) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization required")
		return nil, false
	}
	return p, true
}
