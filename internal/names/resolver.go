package names

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rednetexplorer/core/internal/busproto"
	"github.com/rednetexplorer/core/internal/transport"
)

// ErrUnreachable is returned by Lookup when the claimed owner of an answer
// does not respond to verification and AllowUnverified is false (spec §4.4
// step 6).
var ErrUnreachable = errors.New("names: claimed owner unreachable")

// Warning records a conflicting-answer observation surfaced to the caller
// without invalidating the winning record (spec §4.4 step 5: "A single
// dissenting answer does not invalidate the winner; repeated conflicts are
// recorded and surfaced to the caller as a warning").
type Warning struct {
	Name    string
	Message string
}

// Result is the outcome of Resolver.Lookup.
type Result struct {
	Record   Record
	Verified bool
	Warnings []Warning
}

// Resolver implements the seven-step lookup algorithm of spec §4.4.
type Resolver struct {
	NodeID          int
	Local           *LocalRegistry
	Cache           *Cache
	Adapter         *transport.Adapter
	Codec           *busproto.Codec
	Logger          *slog.Logger
	QueryWindow     time.Duration // default 800ms
	VerifyTimeout   time.Duration // default 1s
	AllowUnverified bool
}

// NewResolver constructs a Resolver with spec-default windows.
func NewResolver(nodeID int, local *LocalRegistry, cache *Cache, adapter *transport.Adapter, codec *busproto.Codec, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		NodeID:        nodeID,
		Local:         local,
		Cache:         cache,
		Adapter:       adapter,
		Codec:         codec,
		Logger:        logger,
		QueryWindow:   800 * time.Millisecond,
		VerifyTimeout: time.Second,
	}
}

// Lookup resolves name per spec §4.4's seven steps.
func (r *Resolver) Lookup(ctx context.Context, raw string) (Result, error) {
	// Step 1: parse.
	name, err := ParseName(raw)
	if err != nil {
		return Result{}, err
	}

	// Step 2: authoritative shortcut.
	if name.Kind == KindComputer && name.NodeID == r.NodeID {
		if rec, ok := r.Local.Lookup(name.Raw); ok {
			return Result{Record: rec, Verified: true}, nil
		}
	}
	if name.Kind == KindAlias {
		if rec, ok := r.Local.Lookup(name.Raw); ok && !rec.Shadowed {
			return Result{Record: rec, Verified: true}, nil
		}
	}

	// Step 3: cache.
	if rec, found, stale := r.Cache.Get(name.Raw); found {
		if !stale {
			return Result{Record: rec, Verified: true}, nil
		}
		go r.refreshAsync(name.Raw)
		return Result{Record: rec, Verified: true, Warnings: []Warning{{Name: name.Raw, Message: "served from stale cache during refresh"}}}, nil
	}

	return r.queryNetwork(ctx, name)
}

func (r *Resolver) refreshAsync(raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.QueryWindow+r.VerifyTimeout+time.Second)
	defer cancel()
	name, err := ParseName(raw)
	if err != nil {
		return
	}
	if _, err := r.queryNetwork(ctx, name); err != nil {
		r.Logger.Warn("async cache refresh failed", "name", raw, "error", err)
	}
}

// queryNetwork performs steps 4-7: broadcast, aggregate, verify, cache.
func (r *Resolver) queryNetwork(ctx context.Context, name Name) (Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.QueryWindow)
	defer cancel()

	answers, err := r.collectAnswers(queryCtx, name.Raw)
	if err != nil {
		return Result{}, err
	}
	if len(answers) == 0 {
		return Result{}, fmt.Errorf("no answers for %q: %w", name.Raw, ErrNotFound)
	}

	winner, warnings := aggregate(name, answers)

	// Step 6: verification.
	verified := r.verify(ctx, winner.NodeID)
	if !verified && !r.AllowUnverified {
		return Result{}, fmt.Errorf("%q claimed by node %d: %w", name.Raw, winner.NodeID, ErrUnreachable)
	}

	// Step 7: cache with bounded TTL.
	ttl := r.Cache.DefaultTTL
	if winner.ExpiresAt != nil {
		if d := time.Until(*winner.ExpiresAt); d > 0 {
			ttl = d
		}
	}
	r.Cache.Set(name.Raw, winner, ttl)

	return Result{Record: winner, Verified: verified, Warnings: warnings}, nil
}

// collectAnswers broadcasts a dns_query and gathers dns_answer envelopes
// that name this lookup until the bounded window elapses.
func (r *Resolver) collectAnswers(ctx context.Context, name string) ([]Record, error) {
	env, err := r.Codec.Encode(busproto.TypeDNSQuery, busproto.DNSQueryPayload{Name: name, WantVerified: true}, nil)
	if err != nil {
		return nil, err
	}

	answers := make(chan Record, 16)
	unregister := r.listenForAnswers(name, answers)
	defer unregister()

	if err := r.Adapter.Broadcast(env); err != nil {
		return nil, err
	}

	var collected []Record
	for {
		select {
		case <-ctx.Done():
			return collected, nil
		case rec := <-answers:
			collected = append(collected, rec)
		}
	}
}

func (r *Resolver) listenForAnswers(name string, out chan<- Record) func() {
	return r.Adapter.OnReceive(func(source int, env busproto.Envelope) {
		if env.Type != busproto.TypeDNSAnswer {
			return
		}
		var p busproto.DNSAnswerPayload
		if busproto.DecodePayload(env, &p) != nil || p.Name != name {
			return
		}
		rec := Record{
			Name:         p.Name,
			NodeID:       p.NodeID,
			Subdomain:    p.Subdomain,
			RegisteredAt: p.RegisteredAt,
			OwnerNodeID:  p.OwnerNodeID,
		}
		if !p.ExpiresAt.IsZero() {
			exp := p.ExpiresAt
			rec.ExpiresAt = &exp
		}
		select {
		case out <- rec:
		default:
		}
	})
}

// aggregate implements spec §4.4 step 5.
func aggregate(name Name, answers []Record) (Record, []Warning) {
	if name.Kind == KindComputer {
		for _, a := range answers {
			if a.NodeID == name.NodeID {
				return a, nil
			}
		}
		return answers[0], nil
	}

	sorted := append([]Record(nil), answers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].RegisteredAt.Equal(sorted[j].RegisteredAt) {
			return sorted[i].RegisteredAt.Before(sorted[j].RegisteredAt)
		}
		return sorted[i].OwnerNodeID < sorted[j].OwnerNodeID
	})

	winner := sorted[0]
	var warnings []Warning
	for _, a := range sorted[1:] {
		if a.OwnerNodeID != winner.OwnerNodeID {
			warnings = append(warnings, Warning{
				Name:    name.Raw,
				Message: fmt.Sprintf("conflicting answer from owner %d, keeping owner %d", a.OwnerNodeID, winner.OwnerNodeID),
			})
		}
	}
	return winner, warnings
}

// verify pings the claimed owner and waits for a pong within VerifyTimeout.
func (r *Resolver) verify(ctx context.Context, nodeID int) bool {
	ping, err := r.Codec.Encode(busproto.TypePing, nil, &nodeID)
	if err != nil {
		return false
	}
	verifyCtx, cancel := context.WithTimeout(ctx, r.VerifyTimeout)
	defer cancel()
	_, err = r.Adapter.Send(verifyCtx, nodeID, ping, transport.SendOptions{
		Timeout:         r.VerifyTimeout,
		Retries:         0,
		ExpectsResponse: true,
	})
	return err == nil
}
