// Package middleware carries the HTTP middlewares shared by the API routes.
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type contextKey string

const (
	ClientIPKey      contextKey = "client_ip"
	ClientSessionKey contextKey = "client_session"
)

// ClientIdentifier extracts the client IP and a session fingerprint and stores
// both on the request context for logging and rate limiting.
func ClientIdentifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		fingerprint := generateFingerprint(r, ip)

		ctx := context.WithValue(r.Context(), ClientIPKey, ip)
		ctx = context.WithValue(ctx, ClientSessionKey, fingerprint)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getClientIP extracts the real client IP from request headers
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// generateFingerprint creates a session identifier from request headers
func generateFingerprint(r *http.Request, ip string) string {
	data := strings.Join([]string{
		r.Header.Get("User-Agent"),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		ip,
	}, "|")

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// GetClientIP retrieves the client IP from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return "unknown"
}

// GetClientSession retrieves the client session fingerprint from context
func GetClientSession(ctx context.Context) string {
	if session, ok := ctx.Value(ClientSessionKey).(string); ok {
		return session
	}
	return "unknown"
}
