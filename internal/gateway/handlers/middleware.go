package handlers

import (
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/mrmushfiq/maas-platform/internal/shared/redis"
)

type Middleware struct {
	redis *redis.Client
	limit int
}

// NewMiddleware creates the shared middleware. A nil redis client disables
// rate limiting.
func NewMiddleware(redis *redis.Client, limitPerMinute int) *Middleware {
	return &Middleware{
		redis: redis,
		limit: limitPerMinute,
	}
}

// RateLimitMiddleware enforces a per-client request budget per minute
func (m *Middleware) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.redis == nil || m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		exceeded, remaining, err := m.redis.CheckRateLimit(r.Context(), clientIP(r), m.limit)
		if err != nil {
			// Fail open
			log.Printf("rate limit check failed: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if exceeded {
			w.Header().Set("Retry-After", "60")
			respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware handles CORS
func (m *Middleware) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr when one is present
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
