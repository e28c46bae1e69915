package bot

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiter_BurstThenBlocked(t *testing.T) {
	l := NewLimiter(rate.Limit(0.001), 3, time.Hour)
	for i := 0; i < 3; i++ {
		if !l.Allow("a") {
			t.Fatalf("burst request %d should pass", i)
		}
	}
	if l.Allow("a") {
		t.Error("request past burst should be blocked")
	}
}

func TestLimiter_IdentitiesIndependent(t *testing.T) {
	l := NewLimiter(rate.Limit(0.001), 1, time.Hour)
	if !l.Allow("a") {
		t.Fatal("first identity should pass")
	}
	if !l.Allow("b") {
		t.Error("second identity should have its own bucket")
	}
	if l.Allow("a") {
		t.Error("first identity should now be blocked")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := NewLimiter(rate.Limit(0.001), 1, time.Hour)
	if !l.Allow("a") {
		t.Fatal("first request should pass")
	}
	if l.Allow("a") {
		t.Fatal("second request should be blocked")
	}
	l.Reset("a")
	if !l.Allow("a") {
		t.Error("reset should restore the burst")
	}
}

func TestLimiter_IdleEviction(t *testing.T) {
	l := NewLimiter(rate.Limit(0.001), 1, time.Minute)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if !l.Allow("a") {
		t.Fatal("first request should pass")
	}
	if l.Allow("a") {
		t.Fatal("second request should be blocked")
	}

	// After sitting idle past the eviction window the entry is dropped
	// and the identity starts fresh.
	clock = clock.Add(2 * time.Minute)
	if !l.Allow("a") {
		t.Error("idle identity should have been evicted and re-admitted")
	}
}
