package http

import (
	"net/http"
	"net/netip"
	"time"

	"filippo.io/csrf"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	lsotel "github.com/Strob0t/linkshop/internal/adapter/otel"
	"github.com/Strob0t/linkshop/internal/config"
	"github.com/Strob0t/linkshop/internal/domain/admin"
	"github.com/Strob0t/linkshop/internal/domain/plan"
	"github.com/Strob0t/linkshop/internal/middleware"
	"github.com/Strob0t/linkshop/internal/port/cache"
	"github.com/Strob0t/linkshop/internal/port/ratelimit"
)

// RouterConfig carries the infrastructure the router wires into middleware.
type RouterConfig struct {
	BaseDomain     string
	CORSOrigins    []string
	RequestTimeout time.Duration
	// TrustedProxies are the peers whose X-Forwarded-For names the client.
	TrustedProxies []netip.Prefix

	Limiter ratelimit.Limiter
	Rates   config.Rate

	// IdempotencyCache stores checkout replies; nil disables replay.
	IdempotencyCache cache.Cache
	IdempotencyTTL   time.Duration

	// WebhookSecret returns the current payment webhook key.
	WebhookSecret func() string

	Metrics     *lsotel.Metrics
	HTTPMetrics *HTTPMetrics
	// OTELService names the otelhttp spans; empty disables HTTP tracing.
	OTELService string
}

func rule(l config.Limit) ratelimit.Rule {
	return ratelimit.Rule{Max: l.Max, Interval: l.Interval}
}

// NewRouter builds the complete HTTP handler: health, metrics and the
// JSON API under /api.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP(cfg.TrustedProxies))
	r.Use(Logger)
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	if cfg.OTELService != "" {
		r.Use(lsotel.HTTPMiddleware(cfg.OTELService))
	}
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware)
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", HeaderCheckoutSession, "X-Tenant-Slug", middleware.HeaderSuperAdmin},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "Idempotent-Replayed"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", h.Health)
	if cfg.HTTPMetrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.HTTPMetrics.Handler())
	}

	// Cookies authenticate both storefront and admin requests, so every
	// cross-origin browser mutation is refused.
	protection := csrf.New()
	for _, origin := range cfg.CORSOrigins {
		if origin != "*" {
			_ = protection.AddTrustedOrigin(origin)
		}
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(protection.Handler)

		// Payment gateway callbacks carry no tenant context.
		r.With(middleware.WebhookHMAC(cfg.WebhookSecret, middleware.HeaderPaymentSignature)).
			Post("/webhooks/payment", h.PaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Tenant(h.Tenants, cfg.BaseDomain))

			r.Route("/admin", func(r chi.Router) {
				mountAdmin(r, h, cfg)
			})
			r.Group(func(r chi.Router) {
				withTimeout(r, cfg.RequestTimeout)
				mountStorefront(r, h, cfg)
			})
		})
	})

	return r
}

func withTimeout(r chi.Router, d time.Duration) {
	if d > 0 {
		r.Use(chimw.Timeout(d))
	}
}

func mountStorefront(r chi.Router, h *Handlers, cfg RouterConfig) {
	limit := func(name string, l config.Limit) func(http.Handler) http.Handler {
		return middleware.RateLimit(cfg.Limiter, name, rule(l), middleware.ByIP, cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.CustomerSession(h.CustomerAuth))

		r.Get("/shop", h.GetShop)
		r.Get("/products", h.ListPublicProducts)
		r.Get("/products/{id}", h.GetPublicProduct)
		r.Get("/top-sellers", h.TopSellers)

		r.Get("/orders/{id}/track", h.TrackOrder)
		r.With(limit("order_search", cfg.Rates.OrderSearch)).Get("/orders/search", h.SearchOrders)
		r.With(middleware.RequireCustomer).Get("/orders/mine", h.MyOrders)

		r.With(limit("send_otp", cfg.Rates.SendOTP)).Post("/auth/send-otp", h.SendOTP)
		r.With(limit("verify_otp", cfg.Rates.VerifyOTP)).Post("/auth/verify-otp", h.VerifyOTP)
		r.Post("/auth/logout", h.CustomerLogout)
		r.With(middleware.RequireCustomer).Get("/auth/me", h.CustomerMe)

		checkout := []func(http.Handler) http.Handler{limit("checkout", cfg.Rates.Checkout)}
		if cfg.IdempotencyCache != nil {
			checkout = append(checkout, middleware.Idempotency(cfg.IdempotencyCache, cfg.IdempotencyTTL))
		}
		r.With(checkout...).Post("/checkout", h.Checkout)
		r.Put("/checkout/draft", h.SaveDraft)
	})
}

func mountAdmin(r chi.Router, h *Handlers, cfg RouterConfig) {
	feature := func(f plan.Feature) func(http.Handler) http.Handler {
		return middleware.RequireFeature(h.Plans, f)
	}
	ownerOnly := middleware.RequireRole(admin.RoleOwner, admin.RoleSuper)

	r.Group(func(r chi.Router) {
		withTimeout(r, cfg.RequestTimeout)
		r.With(middleware.RateLimit(cfg.Limiter, "admin_login", rule(cfg.Rates.VerifyOTP), middleware.ByIP, cfg.Metrics)).
			Post("/auth/login", h.AdminLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(h.Auth))

		// The live feed is long-lived and stays outside the request timeout.
		r.Get("/ws", h.LiveFeed)

		r.Group(func(r chi.Router) {
			withTimeout(r, cfg.RequestTimeout)

			r.Post("/auth/logout", h.AdminLogout)
			r.Get("/auth/me", h.AdminMe)

			// Orders
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/count", h.CountOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Post("/orders/{id}/confirm-payment", h.ConfirmPayment)
			r.Post("/orders/{id}/status", h.UpdateOrderStatus)

			// Plan and analytics
			r.With(ownerOnly).Get("/plan", h.GetPlan)
			r.Get("/analytics/summary", h.AnalyticsSummary)
			r.With(feature(plan.FeatureAnalytics)).Get("/analytics/daily", h.AnalyticsDaily)

			// Catalogue
			r.Get("/products", h.ListProducts)
			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.With(ownerOnly).Delete("/products/{id}", h.DeleteProduct)

			// Plan-gated modules
			r.With(feature(plan.FeatureCoupon)).Get("/coupons", h.ListCoupons)
			r.With(feature(plan.FeatureCoupon)).Post("/coupons", h.CreateCoupon)
			r.With(feature(plan.FeatureCRM)).Get("/customers", h.ListCustomers)
			r.With(feature(plan.FeatureCartRecovery)).Get("/checkout-drafts", h.ListDrafts)
		})
	})
}
