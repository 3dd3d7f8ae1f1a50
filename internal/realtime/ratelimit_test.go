package realtime

import (
	"testing"
	"time"
)

func TestEventLimiter_BudgetAndRefill(t *testing.T) {
	l := NewEventLimiter(5, 5*time.Second, time.Minute)
	now := time.Unix(1700000000, 0).UTC()

	for i := 0; i < 5; i++ {
		if !l.Allow("conn-1", now) {
			t.Fatalf("event %d within budget was denied", i)
		}
	}
	if l.Allow("conn-1", now) {
		t.Fatalf("event over budget was allowed")
	}

	// One token refills per second (5 per 5s).
	if !l.Allow("conn-1", now.Add(time.Second+time.Millisecond)) {
		t.Fatalf("refilled token was denied")
	}
}

func TestEventLimiter_KeysAreIndependent(t *testing.T) {
	l := NewEventLimiter(1, time.Second, time.Minute)
	now := time.Unix(1700000000, 0).UTC()

	if !l.Allow("a", now) {
		t.Fatalf("first event denied")
	}
	if l.Allow("a", now) {
		t.Fatalf("second event for same key allowed")
	}
	if !l.Allow("b", now) {
		t.Fatalf("other key must have its own bucket")
	}
}

func TestEventLimiter_ForgetResetsBucket(t *testing.T) {
	l := NewEventLimiter(1, time.Hour, time.Minute)
	now := time.Unix(1700000000, 0).UTC()

	l.Allow("conn-1", now)
	if l.Allow("conn-1", now) {
		t.Fatalf("bucket should be empty")
	}
	l.Forget("conn-1")
	if !l.Allow("conn-1", now) {
		t.Fatalf("forgotten key must start fresh")
	}
}

func TestEventLimiter_NilAllowsEverything(t *testing.T) {
	var l *EventLimiter
	if !l.Allow("any", time.Now()) {
		t.Fatalf("nil limiter must allow")
	}
	if NewEventLimiter(0, time.Second, 0) != nil {
		t.Fatalf("invalid budget must yield nil limiter")
	}
}
