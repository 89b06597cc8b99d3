package routing

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// directionsCache holds provider responses keyed by snapped waypoints. An
// entry is fresh until ttl and may be served as a fallback until staleTTL.
type directionsCache struct {
	ttl        time.Duration
	staleTTL   time.Duration
	sweepEvery time.Duration
	snap       float64
	now        func() time.Time

	mu        sync.RWMutex
	entries   map[string]cacheEntry
	lastSweep time.Time
}

type cacheEntry struct {
	resp      *DirectionsResponse
	fetchedAt time.Time
}

func newDirectionsCache(ttl, staleTTL, sweepEvery time.Duration, snapDegrees float64) *directionsCache {
	return &directionsCache{
		ttl:        ttl,
		staleTTL:   max(staleTTL, ttl),
		sweepEvery: sweepEvery,
		snap:       snapDegrees,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
}

// key snaps each waypoint down to the grid so nearby requests share an
// entry. Format: profile:alternatives:lat,lon;lat,lon...
func (c *directionsCache) key(req DirectionsRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:", req.Profile, req.MaxAlternatives)
	for i, p := range req.Waypoints {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%.4f,%.4f", c.floor(p.Lat()), c.floor(p.Lon()))
	}
	return b.String()
}

func (c *directionsCache) floor(v float64) float64 {
	return math.Floor(v/c.snap) * c.snap
}

// fresh returns an entry younger than ttl.
func (c *directionsCache) fresh(key string) (*DirectionsResponse, bool) {
	return c.lookup(key, c.ttl)
}

// stale returns an entry younger than staleTTL.
func (c *directionsCache) stale(key string) (*DirectionsResponse, time.Time, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.fetchedAt) >= c.staleTTL {
		return nil, time.Time{}, false
	}
	return e.resp, e.fetchedAt, true
}

func (c *directionsCache) lookup(key string, maxAge time.Duration) (*DirectionsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= maxAge {
		return nil, false
	}
	return e.resp, true
}

// put stores resp and drops entries past staleTTL at most once per
// sweepEvery. It returns the number of entries dropped.
func (c *directionsCache) put(key string, resp *DirectionsResponse) int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{resp: resp, fetchedAt: now}

	if now.Sub(c.lastSweep) < c.sweepEvery {
		return 0
	}
	c.lastSweep = now
	dropped := 0
	for k, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.staleTTL {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

func (c *directionsCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
