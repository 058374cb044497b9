package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Strob0t/linkshop/internal/adapter/memlimit"
	"github.com/Strob0t/linkshop/internal/middleware"
	"github.com/Strob0t/linkshop/internal/port/ratelimit"
)

func clientAddr(t *testing.T, trusted []netip.Prefix, remote string, forwarded ...string) string {
	t.Helper()
	var got string
	h := middleware.ClientIP(trusted)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = middleware.ByIP(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = remote
	for _, f := range forwarded {
		req.Header.Add("X-Forwarded-For", f)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestClientIP(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name      string
		trusted   []netip.Prefix
		remote    string
		forwarded []string
		want      string
	}{
		{"no trusted proxies ignores header", nil, "203.0.113.5:4000", []string{"198.51.100.1"}, "203.0.113.5"},
		{"untrusted peer ignores header", proxies, "203.0.113.5:4000", []string{"198.51.100.1"}, "203.0.113.5"},
		{"trusted peer uses forwarded client", proxies, "10.1.2.3:4000", []string{"198.51.100.1"}, "198.51.100.1"},
		{"client prepended hops are skipped", proxies, "10.1.2.3:4000", []string{"1.1.1.1, 198.51.100.1, 10.9.9.9"}, "198.51.100.1"},
		{"multiple header lines", proxies, "10.1.2.3:4000", []string{"6.6.6.6", "198.51.100.1"}, "198.51.100.1"},
		{"garbage hop keeps peer", proxies, "10.1.2.3:4000", []string{"not-an-ip"}, "10.1.2.3"},
		{"only proxies keeps peer", proxies, "10.1.2.3:4000", []string{"10.0.0.7"}, "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clientAddr(t, tt.trusted, tt.remote, tt.forwarded...))
		})
	}
}

func TestRateLimit_RotatingForwardedForSharesBucket(t *testing.T) {
	rule := ratelimit.Rule{Max: 3, Interval: time.Minute}
	h := middleware.ClientIP(nil)(middleware.RateLimit(memlimit.New(), "send-otp", rule, nil, nil)(okHandler))

	codes := make([]int, 0, 10)
	for i := range 10 {
		req := withTenant(httptest.NewRequest(http.MethodPost, "/api/auth/send-otp", http.NoBody), "t-tea")
		req.RemoteAddr = "203.0.113.5:4000"
		req.Header.Set("X-Forwarded-For", netip.AddrFrom4([4]byte{10, 0, 0, byte(i)}).String())
		req.Header.Set("X-Real-IP", netip.AddrFrom4([4]byte{10, 0, 1, byte(i)}).String())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 200, 429, 429, 429, 429, 429, 429, 429}, codes)
}
