// Package transport bridges datagram bus events (spec §1: "wireless packet
// broadcast with integer node identifiers") to typed envelopes, and
// implements send retry and timeout (spec §4.2). It keeps no per-connection
// queues and sends no keepalives.
package transport

// RawFrame is a single datagram delivered by the host bus.
type RawFrame struct {
	From    int
	Payload []byte
}

// Bus is the seam to the host environment's datagram broadcast primitive.
// A real host (e.g. the in-game wireless modem) implements this; DevBus is
// an in-memory stand-in used by tests and by the in-process demo node.
type Bus interface {
	// Send transmits frame to a single target node. The call may succeed
	// even if the frame is later dropped in flight — the bus is unreliable.
	Send(target int, frame []byte) error

	// Broadcast transmits frame to every reachable node.
	Broadcast(frame []byte) error

	// Receive returns a channel of inbound frames. The channel is closed
	// when the bus is closed.
	Receive() <-chan RawFrame

	// Close releases bus resources.
	Close() error
}
