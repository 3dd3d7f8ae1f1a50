package realtime

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// EventLimiter applies a token bucket per connection and periodically evicts
// idle entries. The budget/window pair approximates the product's sliding
// window (e.g. 20 events per 5 seconds): refill rate budget/window with a
// burst of budget.
type EventLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*limiterEntry
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewEventLimiter creates a per-key limiter; returns nil if args are invalid.
// A nil limiter allows everything.
func NewEventLimiter(budget int, window, idleTTL time.Duration) *EventLimiter {
	if budget <= 0 || window <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &EventLimiter{
		limit:   rate.Limit(float64(budget) / window.Seconds()),
		burst:   budget,
		byKey:   make(map[string]*limiterEntry),
		idleTTL: idleTTL,
	}
}

// Allow reports whether one event can be consumed for the key at now.
func (l *EventLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed
}

// Forget drops a key immediately (connection closed).
func (l *EventLimiter) Forget(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.byKey, key)
	l.mu.Unlock()
}
