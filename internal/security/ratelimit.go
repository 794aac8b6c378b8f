// Package security implements the process-local rate limiter and the abuse
// detector that feeds the durable ban list.
package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entryTTL controls how long an idle address keeps its limiter state.
const entryTTL = 30 * time.Minute

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter grants a budget of points per window to each key (source
// address). State is process-local and non-durable; the durable ban list is
// the authoritative long-term defense. Safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewRateLimiter creates a limiter allowing points consumptions per window
// for each key. Tokens refill continuously at points/window. A non-positive
// budget is clamped to one point; misconfiguration must not panic or let
// everything through.
func NewRateLimiter(points int, window time.Duration) *RateLimiter {
	if points < 1 {
		points = 1
	}
	rl := &RateLimiter{
		entries:     make(map[string]*limiterEntry),
		limit:       rate.Every(window / time.Duration(points)),
		burst:       points,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Consume takes one point for key. When the budget is exhausted it reports
// denied along with the wait until the next point becomes available. Denial
// is advisory (429), distinct from a ban (403).
func (rl *RateLimiter) Consume(key string) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	entry, ok := rl.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = entry
	}
	entry.lastAccess = time.Now()
	rl.mu.Unlock()

	res := entry.limiter.Reserve()
	if !res.OK() {
		return false, time.Duration(float64(time.Second) / float64(rl.limit))
	}
	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	close(rl.stopCleanup)
	<-rl.cleanupDone
}

func (rl *RateLimiter) cleanupLoop() {
	defer close(rl.cleanupDone)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes entries that haven't been touched recently.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-entryTTL)
	for key, entry := range rl.entries {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.entries, key)
		}
	}
}
