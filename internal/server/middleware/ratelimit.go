package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/wardenhq/warden/internal/security"
)

// RateLimit returns an HTTP middleware that consumes one point from the given
// process-local limiter per request, keyed by source address. Denials are
// advisory: 429 with a Retry-After hint, distinct from a ban's 403.
func RateLimit(limiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.Consume(ClientIP(r))
			if !allowed {
				w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestGuard returns a coarse per-IP request-volume limiter for the whole
// router, sitting in front of the domain-level limiters. Sliding window.
func RequestGuard(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}
