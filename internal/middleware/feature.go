package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Strob0t/linkshop/internal/domain"
	"github.com/Strob0t/linkshop/internal/domain/plan"
)

// FeatureGate checks plan features for a tenant.
type FeatureGate interface {
	RequireFeature(ctx context.Context, tenantID string, f plan.Feature) error
}

// RequireFeature returns middleware that answers 403 when the admin's shop
// plan does not include f. It must run after AdminAuth.
func RequireFeature(gate FeatureGate, f plan.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization required")
				return
			}

			if err := gate.RequireFeature(r.Context(), p.TenantID, f); err != nil {
				switch {
				case errors.Is(err, domain.ErrForbidden):
					writeError(w, http.StatusForbidden, CodeForbidden, domain.PublicMessage(err, domain.ErrForbidden))
				case errors.Is(err, domain.ErrNotFound):
					writeError(w, http.StatusNotFound, CodeNotFound, "shop not found")
				default:
					slog.ErrorContext(r.Context(), "feature check failed", "feature", f, "error", err)
					writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
