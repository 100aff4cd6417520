package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware_RejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, false)
	defer rl.Stop()

	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:51000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.8:51000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_PrunesIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(10, 10, false)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.GetLimiter("10.0.0.1")
	now = now.Add(rl.idleTTL / 2)
	rl.GetLimiter("10.0.0.2")

	now = now.Add(rl.idleTTL/2 + time.Second)
	rl.prune()

	assert.Equal(t, 1, rl.size())
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

// TestPurpose: Validates that forwarding headers only pick the client address behind a trusted proxy.
// Scope: Unit Test
// Security: Rate limit evasion and audit IP spoofing
// Expected: Untrusted requests are keyed by the remote address whatever headers they send.
// Test Case ID: HTTP-RL-01
func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		headers    map[string]string
		remote     string
		want       string
	}{
		{"remote addr", false, nil, "192.0.2.1:1234", "192.0.2.1"},
		{"no port", false, nil, "192.0.2.9", "192.0.2.9"},
		{"untrusted forwarded chain", false, map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}, "192.0.2.1:80", "192.0.2.1"},
		{"untrusted real ip", false, map[string]string{"X-Real-IP": "198.51.100.5"}, "192.0.2.1:80", "192.0.2.1"},
		{"trusted forwarded chain", true, map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}, "10.0.0.1:80", "198.51.100.4"},
		{"trusted real ip", true, map[string]string{"X-Real-IP": "198.51.100.5"}, "10.0.0.1:80", "198.51.100.5"},
		{"trusted without headers", true, nil, "10.0.0.1:80", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req, tt.trustProxy))
		})
	}
}

func TestRateLimitMiddleware_IgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, false)
	defer rl.Stop()

	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for _, spoofed := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:51000"
		req.Header.Set("X-Forwarded-For", spoofed)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
