// Package names implements the distributed DNS subsystem: name parsing,
// the local authoritative registry, the TTL cache of learned records, and
// the peer-queried resolver (spec §4.4).
package names

import "time"

// Kind is the closed set of name forms (spec §3: "Domain name").
type Kind string

const (
	KindComputer Kind = "computer"
	KindAlias    Kind = "alias"
	KindReserved Kind = "reserved"
)

// Name is a parsed domain name.
type Name struct {
	Kind      Kind
	Subdomain string // computer form only
	NodeID    int    // computer form only
	Alias     string // alias form only
	Raw       string
}

// Record is a DNS record, authoritative or learned (spec §3: "DNS record").
type Record struct {
	Name         string
	NodeID       int
	Subdomain    string
	RegisteredAt time.Time
	ExpiresAt    *time.Time
	OwnerNodeID  int
	VerifiedAt   *time.Time
	Shadowed     bool
}

// reservedWords may never be registered as an alias or subdomain label
// (spec §3: "reserved words ... refused").
var reservedWords = map[string]bool{
	"admin":  true,
	"root":   true,
	"system": true,
	"rednet": true,
	"comp":   true,
	"local":  true,
	"null":   true,
}
