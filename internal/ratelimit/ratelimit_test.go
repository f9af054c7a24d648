package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/winqerweb-code/winqerapp-insights/internal/middleware"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(time.Second, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("test-key") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow("test-key") {
		t.Error("4th request should be blocked")
	}

	// Wait for window to expire
	time.Sleep(1100 * time.Millisecond)

	if !limiter.Allow("test-key") {
		t.Error("Request after window expiry should be allowed")
	}
}

func TestLimiter_GetRemaining(t *testing.T) {
	limiter := NewLimiter(time.Second, 5)

	if remaining := limiter.GetRemaining("test-key"); remaining != 5 {
		t.Errorf("Expected 5 remaining, got %d", remaining)
	}

	limiter.Allow("test-key")
	limiter.Allow("test-key")

	if remaining := limiter.GetRemaining("test-key"); remaining != 3 {
		t.Errorf("Expected 3 remaining, got %d", remaining)
	}
}

func TestLimiter_IndependentKeys(t *testing.T) {
	limiter := NewLimiter(time.Second, 1)

	if !limiter.Allow("client-a") {
		t.Error("first client should be allowed")
	}
	if limiter.Allow("client-a") {
		t.Error("first client should be blocked on second request")
	}
	if !limiter.Allow("client-b") {
		t.Error("second client must not share the first client's quota")
	}
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	handler := middleware.ClientIdentifier(
		Middleware(Config{Window: time.Minute, Max: 2})(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		),
	)

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/insights/x/metrics", nil)
		req.Header.Set("User-Agent", "test-agent")
		req.RemoteAddr = "192.168.1.1:4321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(); code != http.StatusOK {
		t.Errorf("first request expected 200, got %d", code)
	}
	if code := do(); code != http.StatusOK {
		t.Errorf("second request expected 200, got %d", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Errorf("third request expected 429, got %d", code)
	}
}
