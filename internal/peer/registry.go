package peer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rednetexplorer/core/internal/busproto"
	"github.com/rednetexplorer/core/internal/transport"
)

// Registry maintains {node_id -> Connection} and {node_id -> Descriptor}
// (spec §4.3) and runs the periodic liveness sweep.
type Registry struct {
	Adapter *transport.Adapter
	Codec   *busproto.Codec
	Logger  *slog.Logger

	FreshnessWindow time.Duration // default 5m: evict descriptors
	IdleTimeout     time.Duration // default 2m: close idle connections

	mu          sync.RWMutex
	connections map[int]*Connection
	descriptors map[int]*Descriptor
}

// NewRegistry constructs a Registry with spec-default windows.
func NewRegistry(adapter *transport.Adapter, codec *busproto.Codec, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		Adapter:         adapter,
		Codec:           codec,
		Logger:          logger,
		FreshnessWindow: 5 * time.Minute,
		IdleTimeout:     2 * time.Minute,
		connections:     make(map[int]*Connection),
		descriptors:     make(map[int]*Descriptor),
	}
}

// GetOrOpen returns the Connection for nodeID, opening one if necessary by
// exchanging ping/pong (spec §4.3: "idempotent; transitions idle ->
// connecting -> open").
func (r *Registry) GetOrOpen(ctx context.Context, nodeID int) (*Connection, error) {
	r.mu.Lock()
	conn, ok := r.connections[nodeID]
	if ok && conn.State == StateOpen {
		r.mu.Unlock()
		return conn, nil
	}
	if !ok {
		conn = &Connection{RemoteNodeID: nodeID, State: StateIdle}
		r.connections[nodeID] = conn
	}
	conn.State = StateConnecting
	r.mu.Unlock()

	ping, err := r.Codec.Encode(busproto.TypePing, nil, &nodeID)
	if err != nil {
		r.markFailed(nodeID)
		return nil, err
	}

	_, err = r.Adapter.Send(ctx, nodeID, ping, transport.SendOptions{
		Timeout:         2 * time.Second,
		Retries:         1,
		ExpectsResponse: true,
	})
	if err != nil {
		r.markFailed(nodeID)
		return nil, err
	}

	r.mu.Lock()
	conn.State = StateOpen
	conn.LastSeen = time.Now()
	conn.RetryCount = 0
	r.mu.Unlock()
	return conn, nil
}

func (r *Registry) markFailed(nodeID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.connections[nodeID]; ok {
		conn.State = StateFailed
		conn.RetryCount++
	}
}

// Announce broadcasts the local peer descriptor (spec §4.3).
func (r *Registry) Announce(info Descriptor) error {
	env, err := r.Codec.Encode(busproto.TypePeerAnnounce, busproto.PeerAnnouncePayload{
		Class:        string(info.Class),
		Version:      info.Version,
		Capabilities: info.Capabilities,
		Info:         info.Info,
	}, nil)
	if err != nil {
		return err
	}
	return r.Adapter.Broadcast(env)
}

// OnPeerSeen upserts a descriptor and resets its last-seen time (spec §4.3).
func (r *Registry) OnPeerSeen(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.descriptors[d.NodeID]
	if !ok {
		d.LastSeen = time.Now()
		cp := d
		r.descriptors[d.NodeID] = &cp
		return
	}
	existing.Class = d.Class
	existing.Version = d.Version
	existing.Capabilities = d.Capabilities
	existing.Info = d.Info
	existing.LastSeen = time.Now()
}

// UpdateClassHints records whether a peer is known to host a DNS name or
// respond to dns_query, and recomputes its inferred Class (spec §4.3:
// "Class inference").
func (r *Registry) UpdateClassHints(nodeID int, hostsDNS, respondsDNS bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.descriptors[nodeID]
	if !ok {
		d = &Descriptor{NodeID: nodeID, LastSeen: time.Now()}
		r.descriptors[nodeID] = d
	}
	d.hostsDNSName = d.hostsDNSName || hostsDNS
	d.respondsToDNS = d.respondsToDNS || respondsDNS
	d.Class = classify(d.hostsDNSName, d.respondsToDNS)
}

// Descriptor returns a copy of the known descriptor for nodeID, if any.
func (r *Registry) Descriptor(nodeID int) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[nodeID]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// Connection returns a copy of the connection state for nodeID, if any.
func (r *Registry) Connection(nodeID int) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connections[nodeID]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// Sweep evicts stale peers and closes idle connections (spec §4.3: run
// every minute by the caller).
func (r *Registry) Sweep() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, d := range r.descriptors {
		if now.Sub(d.LastSeen) > r.FreshnessWindow {
			delete(r.descriptors, id)
		}
	}
	for id, c := range r.connections {
		if c.State != StateClosed && now.Sub(c.LastSeen) > r.IdleTimeout {
			c.State = StateClosed
			r.Logger.Info("connection idle-closed", "node_id", id)
		}
	}
}

// PeerCount returns the number of currently known peer descriptors, for
// admin-surface exposure.
func (r *Registry) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}

// RunSweeper runs Sweep on a one-minute ticker until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
