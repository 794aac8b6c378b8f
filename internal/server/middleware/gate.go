package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/internal/store"
)

// Gate is the request-time security orchestrator for the login surface. Per
// request it checks, in order: the durable ban list (403), then a
// storage-backed attempt-count throttle over the trailing window (429). The
// throttle counts all attempts, successful or not, and is a cross-instance
// backstop layered on top of the process-local rate limiter. On storage
// errors the gate fails open: locking out all traffic because the database
// hiccuped is worse than letting the login flow (which fails closed) decide.
type Gate struct {
	store    *store.Store
	detector *security.Detector
	logger   *slog.Logger

	maxAttempts int64
	window      time.Duration
}

// NewGate creates a Gate rejecting addresses with maxAttempts or more ledger
// rows within window.
func NewGate(st *store.Store, detector *security.Detector, logger *slog.Logger, maxAttempts int, window time.Duration) *Gate {
	return &Gate{
		store:       st,
		detector:    detector,
		logger:      logger,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

// Handler wraps next with the ban and throttle checks.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		now := time.Now().UTC()

		ban, err := g.store.GetActiveBan(r.Context(), ip, now)
		switch {
		case err == nil:
			if ban.BannedUntil != nil {
				w.Header().Set("Retry-After", retryAfterSeconds(ban.BannedUntil.Sub(now)))
			}
			writeError(w, http.StatusForbidden, "IP address is banned")
			return
		case !errors.Is(err, store.ErrNotFound):
			g.logger.Error("gate ban check failed, failing open", "ip", ip, "error", err)
		}

		count, err := g.store.CountAttemptsSince(r.Context(), ip, now.Add(-g.window))
		if err != nil {
			g.logger.Error("gate attempt count failed, failing open", "ip", ip, "error", err)
		} else if count >= g.maxAttempts {
			// The gate is the choke point for adaptive banning: a caller
			// hammering hard enough to trip the durable throttle gets its
			// failure count re-evaluated against the ban threshold too.
			g.detector.Evaluate(r.Context(), ip)

			w.Header().Set("Retry-After", retryAfterSeconds(g.window))
			writeError(w, http.StatusTooManyRequests,
				fmt.Sprintf("Too many attempts. Try again in %s.", g.window))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%d", secs)
}
