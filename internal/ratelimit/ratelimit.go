// Package ratelimit implements a simple in-memory fixed-window rate limiter
// for the insights endpoints. Every dashboard request can fan out into upstream
// provider calls, so a runaway client burns through the ads and analytics API
// quotas; the limiter caps requests per client fingerprint.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/winqerweb-code/winqerapp-insights/internal/middleware"
)

// Config holds limiter configuration.
type Config struct {
	Window time.Duration `mapstructure:"window"`
	Max    int           `mapstructure:"max"`
}

// DefaultConfig returns the default per-client limit.
func DefaultConfig() Config {
	return Config{
		Window: time.Minute,
		Max:    60,
	}
}

// Limiter counts requests per key inside a fixed window that starts at the
// key's first request and resets when it expires.
type Limiter struct {
	mu       sync.RWMutex
	counters map[string]*counter
	window   time.Duration
	max      int
}

type counter struct {
	count     int
	expiresAt time.Time
}

// NewLimiter creates a new rate limiter with the specified window and max requests
func NewLimiter(window time.Duration, max int) *Limiter {
	l := &Limiter{
		counters: make(map[string]*counter),
		window:   window,
		max:      max,
	}
	go l.cleanup()
	return l
}

// Allow checks if a request for the given key is allowed
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, exists := l.counters[key]

	if !exists || now.After(c.expiresAt) {
		l.counters[key] = &counter{
			count:     1,
			expiresAt: now.Add(l.window),
		}
		return true
	}

	if c.count >= l.max {
		return false
	}

	c.count++
	return true
}

// GetRemaining returns the number of remaining requests for the given key
func (l *Limiter) GetRemaining(key string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := time.Now()
	c, exists := l.counters[key]

	if !exists || now.After(c.expiresAt) {
		return l.max
	}

	remaining := l.max - c.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// cleanup periodically removes expired counters
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, c := range l.counters {
			if now.After(c.expiresAt) {
				delete(l.counters, key)
			}
		}
		l.mu.Unlock()
	}
}

// Middleware rejects requests over the limit with 429, keyed by the client
// fingerprint placed on the context by middleware.ClientIdentifier.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultConfig().Max
	}
	l := NewLimiter(cfg.Window, cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := middleware.GetClientSession(r.Context())
			if !l.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "rate limit exceeded"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
