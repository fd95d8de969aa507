package names

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry holds a cached record with expiration, stale-grace, and LRU
// tracking: on expiry, the record is retained as stale for a short grace
// period so it can still be served while a refresh is in flight.
type cacheEntry struct {
	value      Record
	expiresAt  time.Time
	staleUntil time.Time
	elem       *list.Element
}

// Cache is a thread-safe, TTL-aware LRU cache of learned DNS records
// (spec §3: "Cache operations").
type Cache struct {
	DefaultTTL time.Duration // default 5m
	MaxTTL     time.Duration // local cap on learned TTLs
	StaleGrace time.Duration // default 30s
	MaxEntries int

	mu   sync.Mutex
	lru  *list.List
	data map[string]*cacheEntry
}

// NewCache constructs a Cache with spec-default TTL and grace settings.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &Cache{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     24 * time.Hour,
		StaleGrace: 30 * time.Second,
		MaxEntries: maxEntries,
		lru:        list.New(),
		data:       make(map[string]*cacheEntry),
	}
}

// Get returns the cached record for name. fresh is true only if the TTL has
// not yet elapsed; a stale-but-within-grace entry is returned with
// stale=true so the caller can serve it while scheduling a refresh
// (spec §4.4 step 3).
func (c *Cache) Get(name string) (rec Record, found, stale bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[name]
	if !ok {
		return Record{}, false, false
	}

	if now.Before(e.expiresAt) {
		c.lru.MoveToBack(e.elem)
		return e.value, true, false
	}

	if now.Before(e.staleUntil) {
		c.lru.MoveToBack(e.elem)
		return e.value, true, true
	}

	c.removeLocked(name, e)
	return Record{}, false, false
}

// Set stores rec under name with the given TTL (capped at MaxTTL).
func (c *Cache) Set(name string, rec Record, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.DefaultTTL
	}
	if ttl > c.MaxTTL {
		ttl = c.MaxTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	staleUntil := expiresAt.Add(c.StaleGrace)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.data[name]; ok {
		existing.value = rec
		existing.expiresAt = expiresAt
		existing.staleUntil = staleUntil
		c.lru.MoveToBack(existing.elem)
		return
	}

	e := &cacheEntry{value: rec, expiresAt: expiresAt, staleUntil: staleUntil}
	e.elem = c.lru.PushBack(name)
	c.data[name] = e

	for len(c.data) > c.MaxEntries {
		front := c.lru.Front()
		if front == nil {
			break
		}
		key := front.Value.(string)
		c.removeLocked(key, c.data[key])
	}
}

func (c *Cache) removeLocked(name string, e *cacheEntry) {
	if e == nil {
		return
	}
	c.lru.Remove(e.elem)
	delete(c.data, name)
}

// ExpireSweep removes entries whose stale grace period has also elapsed.
func (c *Cache) ExpireSweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, e := range c.data {
		if now.After(e.staleUntil) {
			c.removeLocked(name, e)
		}
	}
}

// Len reports the number of cached entries, for admin-surface exposure.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Evict removes name from the cache immediately, used when a dns_withdraw
// announces that a previously cached answer no longer holds (spec §4.4
// convergence design decision: explicit withdrawal rather than waiting out
// the TTL).
func (c *Cache) Evict(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.data[name]; ok {
		c.removeLocked(name, e)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	c.data = make(map[string]*cacheEntry)
}
