package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/store"
)

// Detector decides when a source address crosses the failure threshold and
// writes it to the durable ban list. It is re-evaluated on every failed login
// and on every gate rejection, never on a timer. There is no state machine to
// persist: an address is banned while an active BanRecord exists and clean
// again once the record expires (lazy un-ban).
type Detector struct {
	store    *store.Store
	notifier notify.Notifier
	logger   *slog.Logger

	maxAttempts int64
	window      time.Duration
	banDuration time.Duration
}

// NewDetector creates a Detector. maxAttempts failed attempts within window
// ban the address for banDuration.
func NewDetector(st *store.Store, notifier notify.Notifier, logger *slog.Logger, maxAttempts int, window, banDuration time.Duration) *Detector {
	return &Detector{
		store:       st,
		notifier:    notifier,
		logger:      logger,
		maxAttempts: int64(maxAttempts),
		window:      window,
		banDuration: banDuration,
	}
}

// Evaluate re-checks the failure count for ip and bans it when the threshold
// is crossed. Best-effort: storage errors are logged, never propagated — a
// missed evaluation degrades abuse detection, not auth correctness. The ban
// upsert is a single conditional write, so concurrent evaluations for the
// same address cannot lose updates; last write wins.
func (d *Detector) Evaluate(ctx context.Context, ip string) {
	now := time.Now().UTC()

	count, err := d.store.CountFailedAttemptsSince(ctx, ip, now.Add(-d.window))
	if err != nil {
		d.logger.Error("abuse detector count failed", "ip", ip, "error", err)
		return
	}
	if count < d.maxAttempts {
		return
	}

	reason := fmt.Sprintf("too many failed login attempts: %d", count)
	until := now.Add(d.banDuration)
	if err := d.store.UpsertBan(ctx, ip, reason, &until); err != nil {
		d.logger.Error("abuse detector ban write failed", "ip", ip, "error", err)
		return
	}

	d.logger.Warn("ip banned", "ip", ip, "failed_attempts", count, "banned_until", until)
	d.notifier.BanIssued(ip, reason, count)
}
