package guard

import (
	"testing"

	"github.com/rednetexplorer/core/internal/transport"
	"github.com/stretchr/testify/assert"
)

func TestGuard_AllowsByDefault(t *testing.T) {
	g := New(DefaultConfig())
	assert.Equal(t, transport.GuardAllow, g.CheckRequest(1, 10, "request"))
}

func TestGuard_BlockedNodeIsBlocked(t *testing.T) {
	g := New(DefaultConfig())
	g.BlockedNodes.Add(99)
	assert.Equal(t, transport.GuardBlock, g.CheckRequest(99, 10, "request"))
}

func TestGuard_ThrottledNodeIsThrottled(t *testing.T) {
	g := New(DefaultConfig())
	g.ThrottledNodes.Add(5)
	assert.Equal(t, transport.GuardThrottle, g.CheckRequest(5, 10, "request"))
	assert.Greater(t, g.ThrottleDelay(5), 0)
}

func TestGuard_BlockWinsOverThrottle(t *testing.T) {
	g := New(DefaultConfig())
	g.BlockedNodes.Add(5)
	g.ThrottledNodes.Add(5)
	assert.Equal(t, transport.GuardBlock, g.CheckRequest(5, 10, "request"))
}

func TestGuard_RateLimiterExhaustionDrops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GlobalRate = 0.001
	cfg.GlobalBurst = 1
	g := New(cfg)
	assert.Equal(t, transport.GuardAllow, g.CheckRequest(1, 10, "request"))
	assert.Equal(t, transport.GuardDrop, g.CheckRequest(2, 10, "request"))
}

func TestGuard_BlockedName(t *testing.T) {
	g := New(DefaultConfig())
	g.BlockedNames.Add("spam.comp1.rednet", false)
	assert.True(t, g.BlockedName("spam.comp1.rednet"))
	assert.False(t, g.BlockedName("ok.comp1.rednet"))
}
