// Package busproto implements the message envelope used on the RedNet
// datagram bus: framing, integrity (MAC), replay protection, and
// request/response correlation.
//
// Error Handling:
//
// All errors are wrapped with context using fmt.Errorf("...: %w", err).
// This preserves error chains while adding operational context, matching
// the rest of the core.
package busproto

import "errors"

var (
	// ErrEncode is returned when an envelope's Data cannot be serialized.
	ErrEncode = errors.New("busproto: encode error")

	// ErrParse is returned when raw bytes do not decode into a valid envelope.
	ErrParse = errors.New("busproto: parse error")

	// ErrIntegrity is returned when a decoded envelope's MAC does not match.
	ErrIntegrity = errors.New("busproto: integrity error")

	// ErrReplay is returned when an envelope id has already been seen within
	// the replay window, or its timestamp falls outside the skew window.
	ErrReplay = errors.New("busproto: replay error")

	// ErrUnknownType is returned by decode when the wire type is not part of
	// the closed variant set and no forward-compat policy permits ignoring it.
	ErrUnknownType = errors.New("busproto: unknown envelope type")
)
