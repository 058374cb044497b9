package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	lsotel "github.com/Strob0t/linkshop/internal/adapter/otel"
	"github.com/Strob0t/linkshop/internal/port/ratelimit"
)

// KeyFunc derives the rate limit bucket for a request.
type KeyFunc func(r *http.Request) string

// ByIP buckets requests by client address, scoped to the resolved tenant
// when there is one.
func ByIP(r *http.Request) string {
	ip := realIP(r)
	if t := TenantFromContext(r.Context()); t != nil {
		return t.ID + ":" + ip
	}
	return ip
}

// RateLimit returns middleware that applies rule to every request through
// limiter. The name namespaces the keys and labels the rejection metric.
// Limiter errors let the request through: the throttle is advisory and a
// broken store must not take the shop down.
func RateLimit(limiter ratelimit.Limiter, name string, rule ratelimit.Rule, key KeyFunc, metrics *lsotel.Metrics) func(http.Handler) http.Handler {
	if key == nil {
		key = ByIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), name+":"+key(r), rule)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter unavailable", "rule", name, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				metrics.RateLimited(r.Context(), name)
				w.Header().Set("Retry-After", strconv.FormatInt(res.RetryAfterSeconds(time.Now()), 10))
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// realIP extracts the client IP from RemoteAddr. Proxy headers are not read
// here: a client could rotate them to get a fresh bucket on every request.
// ClientIP folds X-Forwarded-For into RemoteAddr for trusted proxies only.
func realIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
