package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Strob0t/linkshop/internal/port/cache"
)

const (
	headerIdempotencyKey     = "Idempotency-Key"
	headerIdempotentReplayed = "Idempotent-Replayed"
	maxIdempotencyKeyLength  = 255
	maxIdempotencyBody       = 1 << 20 // 1 MB
)

// idempotencyEntry stores a cached HTTP response.
type idempotencyEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that replays the stored response for a
// repeated POST carrying the same Idempotency-Key within ttl. Keys are
// scoped to the resolved tenant. Only successful responses are stored, so a
// failed checkout can be retried with the same key.
func Idempotency(c cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				writeError(w, http.StatusBadRequest, CodeBadRequest, "Idempotency-Key is too long")
				return
			}

			scope := ""
			if t := TenantFromContext(r.Context()); t != nil {
				scope = t.ID
			}
			cacheKey := cache.Key("idempotency", scope, key)

			cached, ok, err := cache.GetJSON[idempotencyEntry](r.Context(), c, cacheKey)
			if err != nil {
				slog.WarnContext(r.Context(), "idempotency: lookup failed", "key", key, "error", err)
			}
			if ok {
				for k, vals := range cached.Headers {
					for _, v := range vals {
						w.Header().Add(k, v)
					}
				}
				w.Header().Set(headerIdempotentReplayed, "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				return
			}

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(rec, r)

			if rec.statusCode < 200 || rec.statusCode >= 300 || rec.body.Len() > maxIdempotencyBody {
				return
			}
			entry := idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    storableHeaders(w.Header()),
				Body:       rec.body.Bytes(),
			}
			// The request context may already be cancelled by a client that
			// hung up after the order was created.
			storeCtx := context.WithoutCancel(r.Context())
			if err := cache.SetJSON(storeCtx, c, cacheKey, entry, ttl); err != nil {
				slog.WarnContext(r.Context(), "idempotency: failed to store response", "key", key, "error", err)
			}
		})
	}
}

// storableHeaders drops headers that belong to a single exchange.
func storableHeaders(h http.Header) map[string][]string {
	out := h.Clone()
	for _, k := range []string{"Set-Cookie", "X-Request-Id", "X-Ratelimit-Remaining", "X-Ratelimit-Reset", "Date"} {
		delete(out, k)
	}
	return out
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
