package security

import (
	"testing"
	"time"
)

func TestRateLimiterBudget(t *testing.T) {
	rl := NewRateLimiter(5, time.Hour)
	defer rl.Close()

	for i := 0; i < 5; i++ {
		allowed, _ := rl.Consume("10.0.0.1")
		if !allowed {
			t.Fatalf("consumption %d denied, want allowed", i+1)
		}
	}

	allowed, retryAfter := rl.Consume("10.0.0.1")
	if allowed {
		t.Fatal("6th consumption allowed, want denied")
	}
	if retryAfter <= 0 {
		t.Errorf("got retryAfter %v, want > 0", retryAfter)
	}
}

func TestRateLimiterClampsNonPositiveBudget(t *testing.T) {
	rl := NewRateLimiter(0, time.Hour)
	defer rl.Close()

	allowed, _ := rl.Consume("10.0.0.5")
	if !allowed {
		t.Fatal("clamped budget should allow the first consumption")
	}
	if allowed, _ := rl.Consume("10.0.0.5"); allowed {
		t.Fatal("clamped budget should deny the second consumption")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	defer rl.Close()

	rl.Consume("10.0.0.1")
	rl.Consume("10.0.0.1")
	if allowed, _ := rl.Consume("10.0.0.1"); allowed {
		t.Fatal("exhausted key still allowed")
	}

	if allowed, _ := rl.Consume("10.0.0.2"); !allowed {
		t.Fatal("fresh key denied")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	// 10 points per 100ms refills one point every 10ms.
	rl := NewRateLimiter(10, 100*time.Millisecond)
	defer rl.Close()

	for i := 0; i < 10; i++ {
		rl.Consume("10.0.0.3")
	}
	if allowed, _ := rl.Consume("10.0.0.3"); allowed {
		t.Fatal("expected budget exhausted")
	}

	time.Sleep(30 * time.Millisecond)

	if allowed, _ := rl.Consume("10.0.0.3"); !allowed {
		t.Fatal("expected a point after refill interval")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5, time.Hour)
	defer rl.Close()

	rl.Consume("10.0.0.4")

	rl.mu.Lock()
	rl.entries["10.0.0.4"].lastAccess = time.Now().Add(-2 * entryTTL)
	rl.mu.Unlock()

	rl.cleanup()

	rl.mu.Lock()
	_, exists := rl.entries["10.0.0.4"]
	rl.mu.Unlock()
	if exists {
		t.Error("stale entry survived cleanup")
	}
}
