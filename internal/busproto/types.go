package busproto

import (
	"time"

	gojson "github.com/goccy/go-json"
)

// Type is the closed set of envelope kinds carried on the wire as the "t" key.
type Type string

const (
	TypeRequest      Type = "request"
	TypeResponse     Type = "response"
	TypeError        Type = "error"
	TypeDNSQuery     Type = "dns_query"
	TypeDNSAnswer    Type = "dns_answer"
	TypeDNSWithdraw  Type = "dns_withdraw"
	TypePing         Type = "ping"
	TypePong         Type = "pong"
	TypePeerAnnounce Type = "peer_announce"
	TypeCrawlRequest Type = "crawl_request"
)

// knownTypes is consulted by decode to reject unrecognized wire types unless
// a forward-compatibility policy says otherwise.
var knownTypes = map[Type]bool{
	TypeRequest:      true,
	TypeResponse:     true,
	TypeError:        true,
	TypeDNSQuery:     true,
	TypeDNSAnswer:    true,
	TypeDNSWithdraw:  true,
	TypePing:         true,
	TypePong:         true,
	TypePeerAnnounce: true,
	TypeCrawlRequest: true,
}

// Status mirrors HTTP semantics for response/error envelopes per spec §4.1.
type Status int

const (
	StatusOK                  Status = 200
	StatusMovedPermanently    Status = 301
	StatusFound               Status = 302
	StatusBadRequest          Status = 400
	StatusUnauthorized        Status = 401
	StatusForbidden           Status = 403
	StatusNotFound            Status = 404
	StatusInternalServerError Status = 500
	StatusServiceUnavailable  Status = 503
)

// Envelope is the in-memory, tagged-variant form of the wire message
// described in spec §3/§6. Data is kept as raw JSON so each Type can define
// its own typed payload without a central union struct (Design Note:
// "dynamic dispatch on message type -> tagged-variant envelope").
type Envelope struct {
	Version   int             `json:"v"`
	Type      Type            `json:"t"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"ts"` // milliseconds since epoch
	Source    int             `json:"src"`
	Target    *int            `json:"tgt,omitempty"`
	Data      gojson.RawMessage `json:"d,omitempty"`
	MAC       string          `json:"m,omitempty"` // hex-encoded

	// InReplyTo is not serialized and Decode does not fill it in; the
	// in-reply-to id of a response/error envelope travels inside Data
	// (ResponsePayload.InReplyTo, ErrorPayload.InReplyTo).
	InReplyTo string `json:"-"`
}

// TimestampTime returns Timestamp as a time.Time in UTC.
func (e Envelope) TimestampTime() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// RequestPayload is the Data shape for TypeRequest envelopes.
type RequestPayload struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Cookies map[string]string `json:"cookies,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// ResponsePayload is the Data shape for TypeResponse envelopes.
type ResponsePayload struct {
	InReplyTo  string            `json:"in_reply_to"`
	Status     Status            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	CookiesSet map[string]string `json:"cookies_set,omitempty"`
}

// ErrorPayload is the Data shape for TypeError envelopes.
type ErrorPayload struct {
	InReplyTo string `json:"in_reply_to"`
	Status    Status `json:"status"`
	Reason    string `json:"reason"`
}

// DNSQueryPayload is the Data shape for TypeDNSQuery envelopes.
type DNSQueryPayload struct {
	Name         string `json:"name"`
	WantVerified bool   `json:"want_verified"`
}

// DNSAnswerPayload is the Data shape for TypeDNSAnswer envelopes.
type DNSAnswerPayload struct {
	Name         string    `json:"name"`
	NodeID       int       `json:"node_id"`
	Subdomain    string    `json:"subdomain,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	OwnerNodeID  int       `json:"owner_node_id"`
}

// DNSWithdrawPayload is the Data shape for TypeDNSWithdraw envelopes.
type DNSWithdrawPayload struct {
	Name        string `json:"name"`
	OwnerNodeID int    `json:"owner_node_id"`
}

// PeerAnnouncePayload is the Data shape for TypePeerAnnounce envelopes.
type PeerAnnouncePayload struct {
	Class        string            `json:"class"`
	Version      string            `json:"version"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Info         map[string]string `json:"info,omitempty"`
}

// CrawlRequestPayload is the Data shape for TypeCrawlRequest envelopes: a
// peer asking this node to crawl (or re-crawl) a site on its own behalf,
// feeding the result into the requester's local index (spec §4.9's
// distributed crawl; the crawl itself runs through the normal request
// path described there).
type CrawlRequestPayload struct {
	SeedURL string `json:"seed_url"`
}
