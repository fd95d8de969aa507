package busproto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	gojson "github.com/goccy/go-json"
)

// ProtocolVersion is stamped into every encoded envelope's "v" field.
const ProtocolVersion = 1

// WellKnownNetworkKey is the fallback MAC key used when no per-pair derived
// secret is available. The MAC is integrity-only (spec §9 Open Questions):
// a claimed "src" is advisory, never authenticated against this key.
var WellKnownNetworkKey = []byte("rednet-explorer-well-known-network-key")

// SecretSource resolves the MAC key shared with a given peer. Implementations
// may derive a per-pair key (e.g. from a prior handshake) and fall back to
// WellKnownNetworkKey when none exists.
type SecretSource interface {
	Secret(peer int) []byte
}

// StaticSecret is a SecretSource that always returns the same key, used when
// no per-pair key exchange is in play.
type StaticSecret struct{ Key []byte }

func (s StaticSecret) Secret(int) []byte {
	if len(s.Key) == 0 {
		return WellKnownNetworkKey
	}
	return s.Key
}

// CompatPolicy controls decode's handling of envelope types outside the
// closed variant set.
type CompatPolicy struct {
	// AllowUnknownMinor, when true, causes decode to tolerate an unknown
	// Type by returning it unparsed rather than ErrUnknownType, as long as
	// the envelope otherwise validates (forward-compatible ignore).
	AllowUnknownMinor bool
}

// Codec builds and parses envelopes per spec §4.1.
type Codec struct {
	SourceID int
	Secrets  SecretSource
	Clock    Clock
	Replay   *ReplayWindow
	Compat   CompatPolicy

	counter atomic.Int64
}

// NewCodec constructs a Codec for the given local node id.
func NewCodec(sourceID int, secrets SecretSource) *Codec {
	clock := SystemClock{}
	if secrets == nil {
		secrets = StaticSecret{}
	}
	return &Codec{
		SourceID: sourceID,
		Secrets:  secrets,
		Clock:    clock,
		Replay:   NewReplayWindow(clock),
	}
}

// nextID allocates a per-sender monotonic id string, unique enough for
// dedup within the replay window (spec §3: "Message envelope").
func (c *Codec) nextID() string {
	n := c.counter.Add(1)
	return fmt.Sprintf("%d.%d.%d", c.SourceID, c.Clock.Now().UnixNano(), n)
}

// Encode stamps a fresh id/timestamp/source onto data of the given type and
// computes its MAC. Target is nil for broadcasts.
func (c *Codec) Encode(t Type, data any, target *int) (Envelope, error) {
	raw, err := gojson.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w: %w", err, ErrEncode)
	}

	env := Envelope{
		Version:   ProtocolVersion,
		Type:      t,
		ID:        c.nextID(),
		Timestamp: c.Clock.Now().UnixMilli(),
		Source:    c.SourceID,
		Target:    target,
		Data:      raw,
	}

	mac, err := c.computeMAC(env, target)
	if err != nil {
		return Envelope{}, err
	}
	env.MAC = mac
	return env, nil
}

func (c *Codec) computeMAC(env Envelope, target *int) (string, error) {
	key := WellKnownNetworkKey
	if c.Secrets != nil && target != nil {
		key = c.Secrets.Secret(*target)
	} else if c.Secrets != nil {
		key = c.Secrets.Secret(env.Source)
	}

	canonical, err := c.canonicalData(env.Data)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(env.ID))
	mac.Write([]byte(fmt.Sprintf("%d", env.Timestamp)))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// canonicalData re-marshals Data through a deterministic encoder so the MAC
// is stable regardless of the original field order on the wire.
func (c *Codec) canonicalData(data gojson.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		return []byte("null"), nil
	}
	var v any
	if err := gojson.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w: %w", err, ErrEncode)
	}
	out, err := gojson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w: %w", err, ErrEncode)
	}
	return out, nil
}

// Marshal serializes an already-built envelope to wire bytes.
func (c *Codec) Marshal(env Envelope) ([]byte, error) {
	b, err := gojson.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w: %w", err, ErrEncode)
	}
	return b, nil
}

// Decode validates, MAC-checks (integrity only; see Codec), and
// replay-checks raw wire bytes, returning the parsed Envelope.
func (c *Codec) Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := gojson.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w: %w", err, ErrParse)
	}

	if err := c.validateRequiredFields(env); err != nil {
		return Envelope{}, err
	}

	if !knownTypes[env.Type] && !c.Compat.AllowUnknownMinor {
		return Envelope{}, fmt.Errorf("type %q: %w", env.Type, ErrUnknownType)
	}

	expectedMAC, err := c.computeMAC(env, nil)
	if err != nil {
		return Envelope{}, err
	}
	if !hmac.Equal([]byte(expectedMAC), []byte(env.MAC)) {
		return Envelope{}, fmt.Errorf("mac mismatch for id %q: %w", env.ID, ErrIntegrity)
	}

	if c.Replay != nil {
		if err := c.Replay.Accept(env.Source, env.ID, env.TimestampTime()); err != nil {
			return Envelope{}, err
		}
	}

	return env, nil
}

func (c *Codec) validateRequiredFields(env Envelope) error {
	if env.Version == 0 {
		return fmt.Errorf("missing version: %w", ErrParse)
	}
	if env.Type == "" {
		return fmt.Errorf("missing type: %w", ErrParse)
	}
	if env.ID == "" || len(env.ID) > 64 {
		return fmt.Errorf("invalid id length: %w", ErrParse)
	}
	if env.Timestamp == 0 {
		return fmt.Errorf("missing timestamp: %w", ErrParse)
	}
	return nil
}

// DecodePayload unmarshals env.Data into dst (a pointer to one of the typed
// *Payload structs).
func DecodePayload(env Envelope, dst any) error {
	if err := gojson.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("unmarshal payload for type %q: %w: %w", env.Type, err, ErrParse)
	}
	return nil
}

// CreateRequest builds a TypeRequest envelope addressed to target.
func (c *Codec) CreateRequest(target int, payload RequestPayload) (Envelope, error) {
	return c.Encode(TypeRequest, payload, &target)
}

// CreateResponse builds a TypeResponse envelope answering inReplyTo.
func (c *Codec) CreateResponse(target int, status Status, body []byte, headers, cookiesSet map[string]string, inReplyTo string) (Envelope, error) {
	return c.Encode(TypeResponse, ResponsePayload{
		InReplyTo:  inReplyTo,
		Status:     status,
		Headers:    headers,
		Body:       body,
		CookiesSet: cookiesSet,
	}, &target)
}

// CreateError builds a TypeError envelope answering inReplyTo.
func (c *Codec) CreateError(target int, status Status, reason string, inReplyTo string) (Envelope, error) {
	return c.Encode(TypeError, ErrorPayload{
		InReplyTo: inReplyTo,
		Status:    status,
		Reason:    reason,
	}, &target)
}

// Now is a convenience accessor used by callers that need the codec's clock.
func (c *Codec) Now() time.Time { return c.Clock.Now() }
