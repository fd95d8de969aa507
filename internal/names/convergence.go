package names

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rednetexplorer/core/internal/busproto"
)

// Convergence periodically re-resolves each locally-registered alias against
// the network and marks the local record shadowed when a network answer
// wins, broadcasting an explicit dns_withdraw rather than letting peers
// notice only once the record's TTL lapses. It runs as a
// stopCh/doneCh/runLoop poller with its status counters guarded by a
// mutex.
type Convergence struct {
	Local    *LocalRegistry
	Resolver *Resolver
	Adapter  interface {
		Broadcast(env busproto.Envelope) error
	}
	Codec    *busproto.Codec
	Logger   *slog.Logger
	Interval time.Duration // default 2m

	mu         sync.RWMutex
	running    bool
	runCount   int64
	shadowed   int64
	lastRunAt  *time.Time
	lastErr    string

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewConvergence constructs a Convergence poller with a spec-reasonable
// default interval.
func NewConvergence(local *LocalRegistry, resolver *Resolver, adapter interface {
	Broadcast(env busproto.Envelope) error
}, codec *busproto.Codec, logger *slog.Logger) *Convergence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Convergence{
		Local:    local,
		Resolver: resolver,
		Adapter:  adapter,
		Codec:    codec,
		Logger:   logger,
		Interval: 2 * time.Minute,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the periodic re-resolution loop.
func (c *Convergence) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.Logger.Info("dns convergence starting", "interval", c.Interval)
	go c.runLoop(ctx)
}

// Stop halts the loop and waits for it to exit.
func (c *Convergence) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopCh)
	<-c.doneCh
}

func (c *Convergence) runLoop(ctx context.Context) {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.reconcileOnce(ctx)
		}
	}
}

// ReconcileOnce re-resolves every locally registered alias; exported for
// callers (such as the package tests) that want an on-demand pass.
func (c *Convergence) ReconcileOnce(ctx context.Context) {
	c.reconcileOnce(ctx)
}

func (c *Convergence) reconcileOnce(ctx context.Context) {
	now := time.Now()
	c.mu.Lock()
	c.runCount++
	c.lastRunAt = &now
	c.mu.Unlock()

	for _, rec := range c.Local.ListLocal() {
		name, err := ParseName(rec.Name)
		if err != nil || name.Kind != KindAlias || rec.Shadowed {
			continue
		}
		if err := c.reconcileAlias(ctx, rec); err != nil {
			c.mu.Lock()
			c.lastErr = err.Error()
			c.mu.Unlock()
			c.Logger.Warn("convergence reconcile failed", "name", rec.Name, "error", err)
		}
	}
}

func (c *Convergence) reconcileAlias(ctx context.Context, local Record) error {
	result, err := c.Resolver.queryNetwork(ctx, Name{Kind: KindAlias, Alias: local.Name, Raw: local.Name})
	if err != nil {
		// No competing network answer; nothing to do.
		return nil
	}

	winner := result.Record
	if winner.OwnerNodeID == local.OwnerNodeID {
		return nil
	}
	if winner.RegisteredAt.Before(local.RegisteredAt) ||
		(winner.RegisteredAt.Equal(local.RegisteredAt) && winner.OwnerNodeID < local.OwnerNodeID) {
		if err := c.Local.MarkShadowed(local.Name, true); err != nil {
			return fmt.Errorf("mark shadowed: %w", err)
		}
		c.mu.Lock()
		c.shadowed++
		c.mu.Unlock()

		withdraw, err := c.Codec.Encode(busproto.TypeDNSWithdraw, busproto.DNSWithdrawPayload{
			Name:        local.Name,
			OwnerNodeID: local.OwnerNodeID,
		}, nil)
		if err != nil {
			return fmt.Errorf("encode withdrawal: %w", err)
		}
		if err := c.Adapter.Broadcast(withdraw); err != nil {
			return fmt.Errorf("broadcast withdrawal: %w", err)
		}
		c.Logger.Info("alias shadowed by network convergence", "name", local.Name, "winner_node_id", winner.OwnerNodeID)
	}
	return nil
}

// Status reports convergence loop counters for admin-surface exposure.
type Status struct {
	Running   bool
	RunCount  int64
	Shadowed  int64
	LastRunAt *time.Time
	LastError string
}

// Status returns a snapshot of the loop's counters.
func (c *Convergence) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Running:   c.running,
		RunCount:  c.runCount,
		Shadowed:  c.shadowed,
		LastRunAt: c.lastRunAt,
		LastError: c.lastErr,
	}
}
