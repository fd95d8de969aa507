package guard

import (
	"time"

	"github.com/rednetexplorer/core/internal/transport"
)

// Config sets up the default Guard's tiers. A zero rate or burst disables
// that tier; a zero PrefixWidth becomes 1000 and a zero ThrottleDelayMS
// becomes 250. DefaultConfig returns a complete set of tier limits.
type Config struct {
	GlobalRate  float64
	GlobalBurst int
	PrefixRate  float64
	PrefixBurst int
	NodeRate    float64
	NodeBurst   int
	PrefixWidth int

	ThrottleDelayMS int
}

// DefaultConfig returns reasonable tier limits for a single node mediating
// traffic from many peers over an unreliable bus.
func DefaultConfig() Config {
	return Config{
		GlobalRate:      500,
		GlobalBurst:     1000,
		PrefixRate:      100,
		PrefixBurst:     200,
		NodeRate:        20,
		NodeBurst:       40,
		PrefixWidth:     1000,
		ThrottleDelayMS: 250,
	}
}

// Guard is the default transport.NetworkGuard / router guard implementation,
// combining a tiered rate limiter with explicit block and throttle lists for
// node ids and registered name labels (spec §6's "Network guard" external
// collaborator).
type Guard struct {
	limiter *RateLimiter

	BlockedNodes   *NodeSet
	ThrottledNodes *NodeSet
	BlockedNames   *NameTrie
	ThrottledNames *NameTrie

	throttleDelayMS int
}

// New constructs a Guard from cfg with empty block/throttle lists.
func New(cfg Config) *Guard {
	limiter := NewRateLimiter(
		TokenBucketConfig{Rate: cfg.GlobalRate, Burst: cfg.GlobalBurst, CleanupInterval: 5 * time.Minute, MaxEntries: 1},
		TokenBucketConfig{Rate: cfg.PrefixRate, Burst: cfg.PrefixBurst, CleanupInterval: 5 * time.Minute, MaxEntries: 10000},
		TokenBucketConfig{Rate: cfg.NodeRate, Burst: cfg.NodeBurst, CleanupInterval: 5 * time.Minute, MaxEntries: 100000},
		cfg.PrefixWidth,
	)
	delay := cfg.ThrottleDelayMS
	if delay <= 0 {
		delay = 250
	}
	return &Guard{
		limiter:         limiter,
		BlockedNodes:    NewNodeSet(),
		ThrottledNodes:  NewNodeSet(),
		BlockedNames:    NewNameTrie(),
		ThrottledNames:  NewNameTrie(),
		throttleDelayMS: delay,
	}
}

// CheckRequest implements transport.NetworkGuard. Block list wins over
// throttle list, which wins over the rate limiter — the same fail-fast
// tier order RateLimiter.Allow applies within a single tier.
func (g *Guard) CheckRequest(source int, size int, class string) transport.GuardAction {
	if g.BlockedNodes.Contains(source) {
		return transport.GuardBlock
	}
	if g.ThrottledNodes.Contains(source) {
		return transport.GuardThrottle
	}
	if !g.limiter.Allow(source) {
		return transport.GuardDrop
	}
	return transport.GuardAllow
}

// ThrottleDelay implements transport.NetworkGuard.
func (g *Guard) ThrottleDelay(source int) int {
	return g.throttleDelayMS
}

// BlockedName reports whether name is on the block list. The router calls
// this directly after extracting a request's target name, since
// CheckRequest's signature (shared with the raw transport adapter, which
// never decodes a target name) has no name argument to carry it.
func (g *Guard) BlockedName(name string) bool {
	return g.BlockedNames.Contains(name)
}

// ThrottledName reports whether name is on the throttle list.
func (g *Guard) ThrottledName(name string) bool {
	return g.ThrottledNames.Contains(name)
}
