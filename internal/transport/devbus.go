package transport

import (
	"math/rand/v2"
	"sync"
	"time"
)

// DevBroker wires a set of in-process DevBus instances together, simulating
// the host's lossy, reordering wireless broadcast channel. It exists for
// tests and the single-process demo (`rednet-bench`); a real deployment
// implements Bus against the host's actual datagram primitive instead.
type DevBroker struct {
	mu    sync.RWMutex
	nodes map[int]*DevBus

	// DropRate is the probability (0..1) that a frame is silently lost.
	DropRate float64
	// MaxJitter reorders frames by delaying delivery up to this duration.
	MaxJitter time.Duration
}

// NewDevBroker creates a broker with no simulated loss or jitter by default.
func NewDevBroker() *DevBroker {
	return &DevBroker{nodes: make(map[int]*DevBus)}
}

// NewNode registers a new node id on the broker and returns its Bus handle.
func (b *DevBroker) NewNode(id int) *DevBus {
	bus := &DevBus{
		broker: b,
		nodeID: id,
		inbox:  make(chan RawFrame, 256),
	}
	b.mu.Lock()
	b.nodes[id] = bus
	b.mu.Unlock()
	return bus
}

func (b *DevBroker) deliver(from, to int, payload []byte) {
	if b.DropRate > 0 && rand.Float64() < b.DropRate {
		return
	}

	b.mu.RLock()
	target, ok := b.nodes[to]
	b.mu.RUnlock()
	if !ok {
		return
	}

	frame := RawFrame{From: from, Payload: payload}
	if b.MaxJitter <= 0 {
		target.enqueue(frame)
		return
	}

	delay := time.Duration(rand.Int64N(int64(b.MaxJitter) + 1))
	time.AfterFunc(delay, func() { target.enqueue(frame) })
}

func (b *DevBroker) allNodeIDs(except int) []int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]int, 0, len(b.nodes))
	for id := range b.nodes {
		if id != except {
			ids = append(ids, id)
		}
	}
	return ids
}

// DevBus is a single node's handle on a DevBroker.
type DevBus struct {
	broker *DevBroker
	nodeID int

	mu     sync.Mutex
	closed bool
	inbox  chan RawFrame
}

func (d *DevBus) enqueue(frame RawFrame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.inbox <- frame:
	default:
		// Inbound queue overflow: drop oldest to make room (spec §5 quota).
		// The dropped frame is not counted anywhere.
		select {
		case <-d.inbox:
		default:
		}
		select {
		case d.inbox <- frame:
		default:
		}
	}
}

func (d *DevBus) Send(target int, frame []byte) error {
	d.broker.deliver(d.nodeID, target, frame)
	return nil
}

func (d *DevBus) Broadcast(frame []byte) error {
	for _, id := range d.broker.allNodeIDs(d.nodeID) {
		d.broker.deliver(d.nodeID, id, frame)
	}
	return nil
}

func (d *DevBus) Receive() <-chan RawFrame { return d.inbox }

func (d *DevBus) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.inbox)
	return nil
}
