package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/tenant"
	"github.com/Strob0t/linkshop/internal/logger"
)

const (
	headerTenantSlug = "X-Tenant-Slug"
	cookieTenant     = "tenant"
)

type tenantCtxKey struct{}

// TenantResolver looks up active tenants by slug or custom domain.
type TenantResolver interface {
	ResolveSlug(ctx context.Context, slug string) (*tenant.Tenant, error)
	ResolveDomain(ctx context.Context, host string) (*tenant.Tenant, error)
}

// Tenant returns middleware that resolves the shop a request belongs to.
// The X-Tenant-Slug header wins, then the tenant cookie, then the host:
// "<slug>.<baseDomain>" or a tenant's custom domain. Unknown and inactive
// tenants get 404.
func Tenant(resolver TenantResolver, baseDomain string) func(http.Handler) http.Handler {
	suffix := "." + strings.ToLower(strings.TrimPrefix(baseDomain, "."))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := resolveTenant(r, resolver, suffix)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeError(w, http.StatusNotFound, CodeNotFound, "shop not found")
					return
				}
				slog.ErrorContext(r.Context(), "tenant resolution failed", "error", err)
				writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), tenantCtxKey{}, t)
			ctx = logger.WithTenantID(ctx, t.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveTenant(r *http.Request, resolver TenantResolver, suffix string) (*tenant.Tenant, error) {
	ctx := r.Context()
	if slug := strings.TrimSpace(r.Header.Get(headerTenantSlug)); slug != "" {
		return resolver.ResolveSlug(ctx, strings.ToLower(slug))
	}
	if c, err := r.Cookie(cookieTenant); err == nil && c.Value != "" {
		return resolver.ResolveSlug(ctx, strings.ToLower(c.Value))
	}

	host := strings.ToLower(r.Host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return nil, domain.ErrNotFound
	}
	if suffix != "." {
		if slug, ok := strings.CutSuffix(host, suffix); ok && slug != "" && !strings.Contains(slug, ".") {
			return resolver.ResolveSlug(ctx, slug)
		}
	}
	return resolver.ResolveDomain(ctx, host)
}

// TenantFromContext returns the tenant resolved for the request, or nil.
func TenantFromContext(ctx context.Context) *tenant.Tenant {
	t, _ := ctx.Value(tenantCtxKey{}).(*tenant.Tenant)
	return t
}

// WithTenant stores t in ctx the way the Tenant middleware does.
func WithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, t)
}
