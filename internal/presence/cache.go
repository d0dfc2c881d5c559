package presence

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/livewire/internal/metrics"
)

// Cache fronts IsOnline with a short-lived local cache. Hot read paths (user
// lists, conversation headers) ask for the same users many times per second;
// the cache bounds store load and singleflight collapses concurrent lookups
// for the same user into one round trip.
type Cache struct {
	store *Store
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	online    bool
	expiresAt time.Time
}

func NewCache(store *Store, ttl time.Duration, clock clockwork.Clock) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// IsOnline returns the cached answer when fresh, otherwise asks the store.
// A fail-open "offline" from the store is cached too; staleness is bounded by
// the cache TTL, which is far shorter than the presence TTL.
func (c *Cache) IsOnline(ctx context.Context, userID string) bool {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if ok && c.clock.Now().Before(entry.expiresAt) {
		metrics.PresenceCacheHits.Inc()
		return entry.online
	}

	metrics.PresenceCacheMisses.Inc()
	v, _, _ := c.group.Do(userID, func() (interface{}, error) {
		online := c.store.IsOnline(ctx, userID)
		c.mu.Lock()
		c.entries[userID] = cacheEntry{online: online, expiresAt: c.clock.Now().Add(c.ttl)}
		c.mu.Unlock()
		return online, nil
	})
	return v.(bool)
}

// Invalidate removes the cached answer for a user, so their own connect or
// disconnect is visible locally without waiting for expiry.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// EvictExpired removes expired entries and returns the count evicted. Run
// periodically to keep the map from growing without bound.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for userID, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, userID)
			evicted++
		}
	}
	return evicted
}

// StartEvictionTimer starts a background goroutine that periodically evicts
// expired entries. Returns a stop function.
func (c *Cache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				c.EvictExpired()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
