package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defaults: a human typing commands stays well under these, a
// stuck client or a flood hits them immediately.
const (
	DefaultRate      = rate.Limit(1)
	DefaultBurst     = 5
	DefaultIdleEvict = 10 * time.Minute
)

// Limiter rate-limits inbound commands per identity. Idle identities
// are evicted so the map does not grow with every chat ever seen.
type Limiter struct {
	rate  rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a Limiter. Zero values fall back to defaults.
func NewLimiter(r rate.Limit, burst int, idle time.Duration) *Limiter {
	if r <= 0 {
		r = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if idle <= 0 {
		idle = DefaultIdleEvict
	}
	return &Limiter{
		rate:    r,
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow reports whether id may act now, consuming a token if so.
func (l *Limiter) Allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweepLocked(now)
		l.lastSweep = now
	}

	e, ok := l.entries[id]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.rate, l.burst)}
		l.entries[id] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

// Reset forgets the state for id, restoring its full burst.
func (l *Limiter) Reset(id string) {
	l.mu.Lock()
	delete(l.entries, id)
	l.mu.Unlock()
}

func (l *Limiter) sweepLocked(now time.Time) {
	for id, e := range l.entries {
		if now.Sub(e.lastSeen) >= l.idle {
			delete(l.entries, id)
		}
	}
}
