package limiters

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T, cfg LockoutConfig) (*LockoutTracker, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tracker := NewLockoutTracker(client, "ac", cfg)
	return tracker, mr, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestLockTriggersAtThreshold(t *testing.T) {
	tracker, _, done := newTestTracker(t, LockoutConfig{
		Threshold: 3,
		Duration:  time.Minute,
	})
	defer done()
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		locked, err := tracker.RecordFailure(ctx, "alice")
		if err != nil {
			t.Fatalf("RecordFailure %d failed: %v", i, err)
		}
		if locked {
			t.Fatalf("unexpected lock at failure %d", i)
		}
		allowed, _, err := tracker.MayAttempt(ctx, "alice")
		if err != nil || !allowed {
			t.Fatalf("expected attempt allowed at failure %d, allowed=%v err=%v", i, allowed, err)
		}
	}

	locked, err := tracker.RecordFailure(ctx, "alice")
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if !locked {
		t.Fatal("expected lock at threshold")
	}

	allowed, retryAfter, err := tracker.MayAttempt(ctx, "alice")
	if err != nil {
		t.Fatalf("MayAttempt failed: %v", err)
	}
	if allowed {
		t.Fatal("expected attempt refused while locked")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("unexpected retry-after %s", retryAfter)
	}
}

func TestLockExpires(t *testing.T) {
	tracker, mr, done := newTestTracker(t, LockoutConfig{
		Threshold: 1,
		Duration:  time.Minute,
	})
	defer done()
	ctx := context.Background()

	if _, err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if allowed, _, _ := tracker.MayAttempt(ctx, "alice"); allowed {
		t.Fatal("expected lock")
	}

	mr.FastForward(61 * time.Second)

	allowed, _, err := tracker.MayAttempt(ctx, "alice")
	if err != nil {
		t.Fatalf("MayAttempt failed: %v", err)
	}
	if !allowed {
		t.Fatal("expected lock to expire")
	}
	// The pinned counter expired with the lock; the slate is clean.
	count, err := tracker.FailureCount(ctx, "alice")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected counter cleared, got %d", count)
	}
}

func TestSuccessClearsCounterAndLock(t *testing.T) {
	tracker, _, done := newTestTracker(t, LockoutConfig{
		Threshold: 2,
		Duration:  time.Minute,
	})
	defer done()
	ctx := context.Background()

	if _, err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if _, err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if err := tracker.RecordSuccess(ctx, "alice"); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}

	allowed, _, err := tracker.MayAttempt(ctx, "alice")
	if err != nil || !allowed {
		t.Fatalf("expected attempt allowed, allowed=%v err=%v", allowed, err)
	}
	count, err := tracker.FailureCount(ctx, "alice")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 failures, got %d", count)
	}
}

func TestRollingWindowExpiresCounter(t *testing.T) {
	tracker, mr, done := newTestTracker(t, LockoutConfig{
		Threshold: 3,
		Window:    30 * time.Second,
		Duration:  time.Minute,
	})
	defer done()
	ctx := context.Background()

	if _, err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if _, err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	mr.FastForward(31 * time.Second)

	// The window elapsed; a third failure is failure number one again.
	locked, err := tracker.RecordFailure(ctx, "alice")
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if locked {
		t.Fatal("unexpected lock after window reset")
	}
	count, err := tracker.FailureCount(ctx, "alice")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected counter restarted at 1, got %d", count)
	}
}

func TestPrincipalsAreIsolated(t *testing.T) {
	tracker, _, done := newTestTracker(t, LockoutConfig{
		Threshold: 1,
		Duration:  time.Minute,
	})
	defer done()
	ctx := context.Background()

	if _, err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	allowed, _, err := tracker.MayAttempt(ctx, "bob")
	if err != nil || !allowed {
		t.Fatalf("expected bob unaffected, allowed=%v err=%v", allowed, err)
	}
}

func TestUnlockClearsLock(t *testing.T) {
	tracker, _, done := newTestTracker(t, LockoutConfig{
		Threshold: 1,
		Duration:  time.Hour,
	})
	defer done()
	ctx := context.Background()

	if _, err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if err := tracker.Unlock(ctx, "alice"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	allowed, _, err := tracker.MayAttempt(ctx, "alice")
	if err != nil || !allowed {
		t.Fatalf("expected attempt allowed after unlock, allowed=%v err=%v", allowed, err)
	}
}
