package timezone

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a resolved location is reused before
// the name is looked up again.
const DefaultCacheTTL = 5 * time.Minute

// ZoneCache memoizes time.LoadLocation results. Resolution is cheap but
// not free (it reads the zoneinfo database), and the delivery loop asks
// for the display zone on every tick. Safe for concurrent use.
type ZoneCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]zoneEntry
}

type zoneEntry struct {
	loc     *time.Location
	expires time.Time
}

// NewZoneCache creates a cache with the given TTL; ttl <= 0 uses
// DefaultCacheTTL.
func NewZoneCache(ttl time.Duration) *ZoneCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ZoneCache{ttl: ttl, entries: make(map[string]zoneEntry)}
}

// Get resolves a timezone name, consulting the cache first. The names
// "Local" and "" resolve to the process-local zone.
func (c *ZoneCache) Get(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}

	now := time.Now()
	c.mu.Lock()
	if e, ok := c.entries[name]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.loc, nil
	}
	c.mu.Unlock()

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone: load %q: %w", name, err)
	}

	c.mu.Lock()
	c.entries[name] = zoneEntry{loc: loc, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return loc, nil
}

// Invalidate drops every cached entry.
func (c *ZoneCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]zoneEntry)
	c.mu.Unlock()
}
