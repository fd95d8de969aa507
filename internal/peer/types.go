// Package peer maintains the registry of known peers and their logical
// connections (spec §3/§4.3). The registry owns Connection values;
// everything else in the core addresses peers by node id only (Design
// Note: "cyclic references -> arena; no shared-owner cycles").
package peer

import "time"

// Class is a peer's inferred capability class.
type Class string

const (
	ClassClient Class = "client"
	ClassServer Class = "server"
	ClassHybrid Class = "hybrid"
	ClassDNS    Class = "dns"
)

// State is a Connection's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// Descriptor describes a peer as announced or observed (spec §3: "Peer descriptor").
type Descriptor struct {
	NodeID       int
	Class        Class
	Version      string
	Capabilities []string
	LastSeen     time.Time
	Info         map[string]string

	hostsDNSName  bool
	respondsToDNS bool
}

// Connection is a logical conversation with a remote node (spec §3:
// "Connection"). Handlers never hold a *Connection directly across calls —
// they hold the remote node id and look the connection up through Registry,
// matching the arena ownership model.
type Connection struct {
	RemoteNodeID int
	State        State
	LastSeen     time.Time
	RetryCount   int
}

func classify(hostsDNS, respondsDNS bool) Class {
	switch {
	case hostsDNS && respondsDNS:
		return ClassHybrid
	case respondsDNS:
		return ClassDNS
	case hostsDNS:
		return ClassServer
	default:
		return ClassClient
	}
}
