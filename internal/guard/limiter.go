// Package guard supplies the default NetworkGuard implementation consulted
// by the router and transport adapter before dispatch (spec §6's
// "Network guard" external collaborator): a token-bucket rate limiter over
// per-node-id admission control, plus a trie-backed explicit block/throttle
// list of node ids and name labels.
package guard

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// TokenBucketConfig configures one tier of a TokenBucketLimiter.
type TokenBucketConfig struct {
	Rate            float64 // tokens replenished per second
	Burst           int     // bucket capacity
	CleanupInterval time.Duration
	MaxEntries      int
}

// TokenBucketLimiter implements the token bucket algorithm keyed by an
// arbitrary string, here node-id-derived keys rather than IP strings.
type TokenBucketLimiter struct {
	rate            float64
	burst           float64
	cleanupInterval time.Duration
	maxEntries      int

	mu          sync.Mutex
	lastCleanup time.Time
	lastUpdate  map[string]time.Time
	tokens      map[string]float64
}

// NewTokenBucketLimiter constructs a limiter for one tier.
func NewTokenBucketLimiter(cfg TokenBucketConfig) *TokenBucketLimiter {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1
	}
	ci := cfg.CleanupInterval
	if ci <= 0 {
		ci = 60 * time.Second
	}
	return &TokenBucketLimiter{
		rate:            cfg.Rate,
		burst:           float64(cfg.Burst),
		cleanupInterval: ci,
		maxEntries:      maxEntries,
		lastCleanup:     time.Now(),
		lastUpdate:      map[string]time.Time{},
		tokens:          map[string]float64{},
	}
}

// Allow reports whether a request under key should proceed, consuming a
// token if so. A non-positive rate or burst disables the limiter tier.
func (l *TokenBucketLimiter) Allow(key string) bool {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return true
	}

	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) > l.cleanupInterval {
		l.cleanupLocked(now)
	}

	last, exists := l.lastUpdate[key]
	if !exists {
		if len(l.lastUpdate) >= l.maxEntries {
			l.cleanupLocked(now)
			if len(l.lastUpdate) >= l.maxEntries {
				return false
			}
		}
		l.lastUpdate[key] = now
		l.tokens[key] = l.burst - 1.0
		return true
	}

	elapsed := now.Sub(last).Seconds()
	l.lastUpdate[key] = now
	tokens := l.tokens[key]
	if elapsed > 0 {
		tokens = math.Min(l.burst, tokens+elapsed*l.rate)
	}
	if tokens >= 1.0 {
		l.tokens[key] = tokens - 1.0
		return true
	}
	l.tokens[key] = tokens
	return false
}

func (l *TokenBucketLimiter) cleanupLocked(now time.Time) {
	staleBefore := now.Add(-l.cleanupInterval)
	for k, last := range l.lastUpdate {
		if !last.After(staleBefore) {
			delete(l.lastUpdate, k)
			delete(l.tokens, k)
		}
	}
	l.lastCleanup = now
}

// RateLimiter combines global, prefix, and per-node-id tiers, mirroring the
// teacher's three-level RateLimiter (internal/server/rate_limit.go): a
// request must pass all three to be allowed.
type RateLimiter struct {
	global *TokenBucketLimiter
	prefix *TokenBucketLimiter
	nodeID *TokenBucketLimiter

	// PrefixWidth buckets node ids into ranges of this size for the prefix
	// tier, the node-id analogue of an IPv4 /24 prefix.
	PrefixWidth int
}

// NewRateLimiter constructs a three-tier limiter with the given per-tier
// configs.
func NewRateLimiter(global, prefix, nodeID TokenBucketConfig, prefixWidth int) *RateLimiter {
	if prefixWidth <= 0 {
		prefixWidth = 1000
	}
	return &RateLimiter{
		global:      NewTokenBucketLimiter(global),
		prefix:      NewTokenBucketLimiter(prefix),
		nodeID:      NewTokenBucketLimiter(nodeID),
		PrefixWidth: prefixWidth,
	}
}

// Allow checks source against all three tiers, global first (fail fast).
func (r *RateLimiter) Allow(source int) bool {
	if r == nil {
		return true
	}
	if !r.global.Allow("*") {
		return false
	}
	if !r.prefix.Allow(r.prefixKey(source)) {
		return false
	}
	return r.nodeID.Allow(fmt.Sprintf("%d", source))
}

func (r *RateLimiter) prefixKey(source int) string {
	bucket := source / r.PrefixWidth
	return fmt.Sprintf("range:%d", bucket)
}
