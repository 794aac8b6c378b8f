package security

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/store"
)

// recordingNotifier captures BanIssued calls for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	bans []string
}

func (n *recordingNotifier) LoginSuccess(string, string) {}

func (n *recordingNotifier) BanIssued(ip, reason string, attempts int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bans = append(n.bans, ip)
}

func (n *recordingNotifier) banCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.bans)
}

func newDetectorFixture(t *testing.T, maxAttempts int) (*Detector, *store.Store, *recordingNotifier) {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, "", "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDetector(st, notifier, logger, maxAttempts, 15*time.Minute, time.Hour)
	return d, st, notifier
}

func recordFailure(t *testing.T, st *store.Store, ip string) {
	t.Helper()
	username := "alice"
	if err := st.RecordAttempt(context.Background(), &model.LoginAttempt{
		IPAddress: ip,
		Username:  &username,
		Success:   false,
		UserAgent: "test",
	}); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
}

func TestDetectorBelowThreshold(t *testing.T) {
	d, st, notifier := newDetectorFixture(t, 5)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		recordFailure(t, st, "10.0.0.1")
		d.Evaluate(ctx, "10.0.0.1")
	}

	if _, err := st.GetActiveBan(ctx, "10.0.0.1", time.Now().UTC()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound below threshold", err)
	}
	if notifier.banCount() != 0 {
		t.Errorf("got %d ban alerts, want 0", notifier.banCount())
	}
}

func TestDetectorBansAtThreshold(t *testing.T) {
	d, st, notifier := newDetectorFixture(t, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		recordFailure(t, st, "10.0.0.2")
	}
	d.Evaluate(ctx, "10.0.0.2")

	now := time.Now().UTC()
	ban, err := st.GetActiveBan(ctx, "10.0.0.2", now)
	if err != nil {
		t.Fatalf("expected a ban: %v", err)
	}
	if ban.BannedUntil == nil {
		t.Fatal("expected a bounded ban")
	}
	if until := *ban.BannedUntil; until.Before(now.Add(55*time.Minute)) || until.After(now.Add(65*time.Minute)) {
		t.Errorf("banned_until %v not near one hour out", until)
	}
	if notifier.banCount() != 1 {
		t.Errorf("got %d ban alerts, want 1", notifier.banCount())
	}
}

func TestDetectorReEvaluationReplacesBan(t *testing.T) {
	d, st, _ := newDetectorFixture(t, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		recordFailure(t, st, "10.0.0.3")
	}
	d.Evaluate(ctx, "10.0.0.3")

	first, err := st.GetActiveBan(ctx, "10.0.0.3", time.Now().UTC())
	if err != nil {
		t.Fatalf("expected a ban: %v", err)
	}

	// Another failure and a re-evaluation replace the record in place.
	recordFailure(t, st, "10.0.0.3")
	d.Evaluate(ctx, "10.0.0.3")

	second, err := st.GetActiveBan(ctx, "10.0.0.3", time.Now().UTC())
	if err != nil {
		t.Fatalf("expected the ban to persist: %v", err)
	}
	if second.Reason == first.Reason {
		t.Errorf("reason not replaced: %q", second.Reason)
	}
	if second.BannedUntil.Before(*first.BannedUntil) {
		t.Errorf("expiry moved backwards: first %v, second %v", first.BannedUntil, second.BannedUntil)
	}

	bans, err := st.ListActiveBans(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ListActiveBans: %v", err)
	}
	if len(bans) != 1 {
		t.Errorf("got %d ban rows, want 1", len(bans))
	}
}

func TestDetectorIgnoresSuccessfulAttempts(t *testing.T) {
	d, st, _ := newDetectorFixture(t, 5)
	ctx := context.Background()

	username := "alice"
	for i := 0; i < 10; i++ {
		if err := st.RecordAttempt(ctx, &model.LoginAttempt{
			IPAddress: "10.0.0.4",
			Username:  &username,
			Success:   true,
			UserAgent: "test",
		}); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	d.Evaluate(ctx, "10.0.0.4")

	if _, err := st.GetActiveBan(ctx, "10.0.0.4", time.Now().UTC()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("successful attempts caused a ban: %v", err)
	}
}
