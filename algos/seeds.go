package algos

import (
	"sync"
	"time"
)

const (
	seedTTL        = 12 * time.Hour
	seedSweepEvery = time.Hour
)

type seedEntry struct {
	seed      int64
	timestamp time.Time
}

// SeedCache holds each requester's shuffle seed so a pagination session
// stays stable while an explicit fresh load re-randomizes. Entries expire
// after twelve hours of no fresh loads; the timestamp refreshes only on
// Bump. State is per-process: behind a load balancer without sticky
// sessions, page stability depends on which instance serves the request.
type SeedCache struct {
	mu      sync.Mutex
	entries map[string]*seedEntry
	now     func() time.Time

	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSeedCache() *SeedCache {
	return &SeedCache{
		entries: map[string]*seedEntry{},
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Get returns the requester's current seed, zero if none exists.
func (c *SeedCache) Get(did string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[did]; ok {
		return e.seed
	}
	return 0
}

// Bump increments the requester's seed and refreshes its expiry.
func (c *SeedCache) Bump(did string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[did]
	if !ok {
		e = &seedEntry{}
		c.entries[did] = e
	}
	e.seed++
	e.timestamp = c.now()
	return e.seed
}

// Sweep drops entries whose last fresh load is older than the TTL.
func (c *SeedCache) Sweep() {
	cutoff := c.now().Add(-seedTTL)
	c.mu.Lock()
	defer c.mu.Unlock()
	for did, e := range c.entries {
		if e.timestamp.Before(cutoff) {
			delete(c.entries, did)
		}
	}
}

// Start launches the hourly sweeper. Stop releases it.
func (c *SeedCache) Start() {
	c.ticker = time.NewTicker(seedSweepEvery)
	go func() {
		for {
			select {
			case <-c.ticker.C:
				c.Sweep()
			case <-c.stop:
				return
			}
		}
	}()
}

func (c *SeedCache) Stop() {
	c.stopOnce.Do(func() {
		if c.ticker != nil {
			c.ticker.Stop()
		}
		close(c.stop)
	})
}
