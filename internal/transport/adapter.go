package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rednetexplorer/core/internal/busproto"
)

// ReceiveFunc handles an accepted inbound envelope, after codec validation,
// replay check, and the network guard have all passed (spec §4.2:
// "on_receive(envelope) — registered callback invoked for each accepted
// inbound envelope").
type ReceiveFunc func(source int, env busproto.Envelope)

// Stats holds observability counters for an Adapter (spec §7: network-layer
// errors "increment observability counters only").
type Stats struct {
	IntegrityErrors atomic.Int64
	ReplayErrors    atomic.Int64
	ParseErrors     atomic.Int64
	OverloadDrops   atomic.Int64
	GuardDrops      atomic.Int64
	GuardBlocks     atomic.Int64
	Timeouts        atomic.Int64
	Sent            atomic.Int64
	Received        atomic.Int64
}

type pendingCall struct {
	ch chan busproto.Envelope
}

// Adapter implements spec §4.2: it bridges a Bus to typed envelopes, and
// provides send-with-retry, fire-and-forget broadcast, and a receive
// callback. It sends no periodic keepalives, and neither does
// internal/peer.Registry: the registry pings a peer (via Adapter.Send) only
// when GetOrOpen opens a new connection.
type Adapter struct {
	Bus    Bus
	Codec  *busproto.Codec
	Guard  NetworkGuard
	Logger *slog.Logger

	Stats Stats

	mu            sync.Mutex
	pending       map[string]*pendingCall
	handlers      map[uint64]ReceiveFunc
	nextHandlerID uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewAdapter wires a Bus and Codec into a running Adapter. Call Start to
// begin consuming inbound frames.
func NewAdapter(bus Bus, codec *busproto.Codec, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		Bus:      bus,
		Codec:    codec,
		Guard:    AllowAllGuard{},
		Logger:   logger,
		pending:  make(map[string]*pendingCall),
		handlers: make(map[uint64]ReceiveFunc),
		done:     make(chan struct{}),
	}
}

// OnReceive registers a callback invoked for every accepted inbound
// envelope that is not itself consumed as the response to a pending Send.
// The returned func deregisters the callback; callers that register a
// handler for the lifetime of a single operation (e.g. a DNS lookup's
// query window) must call it once that operation completes, or the
// handler set grows without bound over the life of the Adapter.
func (a *Adapter) OnReceive(fn ReceiveFunc) func() {
	a.mu.Lock()
	id := a.nextHandlerID
	a.nextHandlerID++
	a.handlers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.handlers, id)
		a.mu.Unlock()
	}
}

// Start begins the receive loop. It returns when ctx is cancelled or the
// bus is closed.
func (a *Adapter) Start(ctx context.Context) {
	go a.recvLoop(ctx)
}

func (a *Adapter) recvLoop(ctx context.Context) {
	defer close(a.done)
	frames := a.Bus.Receive()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			a.handleFrame(ctx, frame)
		}
	}
}

func (a *Adapter) handleFrame(ctx context.Context, frame RawFrame) {
	env, err := a.Codec.Decode(frame.Payload)
	if err != nil {
		a.countDecodeError(err)
		return
	}

	action := a.Guard.CheckRequest(frame.From, len(frame.Payload), string(env.Type))
	switch action {
	case GuardDrop, GuardBlock:
		if action == GuardBlock {
			a.Stats.GuardBlocks.Add(1)
		} else {
			a.Stats.GuardDrops.Add(1)
		}
		return
	case GuardThrottle:
		delay := a.Guard.ThrottleDelay(frame.From)
		if delay > 0 {
			select {
			case <-time.After(time.Duration(delay) * time.Millisecond):
			case <-ctx.Done():
				return
			}
		}
	}

	a.Stats.Received.Add(1)

	if inReplyTo, ok := extractInReplyTo(env); ok {
		a.mu.Lock()
		call, found := a.pending[inReplyTo]
		if found {
			delete(a.pending, inReplyTo)
		}
		a.mu.Unlock()
		if found {
			select {
			case call.ch <- env:
			default:
			}
			return
		}
	}

	a.mu.Lock()
	handlers := make([]ReceiveFunc, 0, len(a.handlers))
	for _, h := range a.handlers {
		handlers = append(handlers, h)
	}
	a.mu.Unlock()
	for _, h := range handlers {
		h(frame.From, env)
	}
}

func (a *Adapter) countDecodeError(err error) {
	switch {
	case isErr(err, busproto.ErrIntegrity):
		a.Stats.IntegrityErrors.Add(1)
	case isErr(err, busproto.ErrReplay):
		a.Stats.ReplayErrors.Add(1)
	default:
		a.Stats.ParseErrors.Add(1)
	}
}

func isErr(err, target error) bool {
	for e := err; e != nil; {
		if e == target {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

func extractInReplyTo(env busproto.Envelope) (string, bool) {
	switch env.Type {
	case busproto.TypeResponse:
		var p busproto.ResponsePayload
		if busproto.DecodePayload(env, &p) == nil && p.InReplyTo != "" {
			return p.InReplyTo, true
		}
	case busproto.TypeError:
		var p busproto.ErrorPayload
		if busproto.DecodePayload(env, &p) == nil && p.InReplyTo != "" {
			return p.InReplyTo, true
		}
	}
	return "", false
}

// Send transmits env to target, applying timeout/retry semantics from
// opts. When opts.ExpectsResponse is false, Send returns as soon as the bus
// accepts the frame.
func (a *Adapter) Send(ctx context.Context, target int, env busproto.Envelope, opts SendOptions) (busproto.Envelope, error) {
	opts = opts.withDefaults()

	raw, err := a.Codec.Marshal(env)
	if err != nil {
		return busproto.Envelope{}, err
	}

	if !opts.ExpectsResponse {
		if err := a.Bus.Send(target, raw); err != nil {
			return busproto.Envelope{}, fmt.Errorf("%w: %w", ErrNetworkRefused, err)
		}
		a.Stats.Sent.Add(1)
		return busproto.Envelope{}, nil
	}

	call := &pendingCall{ch: make(chan busproto.Envelope, 1)}
	a.mu.Lock()
	a.pending[env.ID] = call
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, env.ID)
		a.mu.Unlock()
	}()

	backoff := initialBackoff
	attempts := opts.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := a.Bus.Send(target, raw); err != nil {
			return busproto.Envelope{}, fmt.Errorf("%w: %w", ErrNetworkRefused, err)
		}
		a.Stats.Sent.Add(1)

		timer := time.NewTimer(opts.Timeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return busproto.Envelope{}, ErrCancelled
		case resp := <-call.ch:
			timer.Stop()
			return resp, nil
		case <-timer.C:
			a.Stats.Timeouts.Add(1)
			if attempt == attempts-1 {
				return busproto.Envelope{}, ErrTimeout
			}
			select {
			case <-ctx.Done():
				return busproto.Envelope{}, ErrCancelled
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return busproto.Envelope{}, ErrTimeout
}

// Broadcast transmits env on the broadcast channel, fire-and-forget.
func (a *Adapter) Broadcast(env busproto.Envelope) error {
	raw, err := a.Codec.Marshal(env)
	if err != nil {
		return err
	}
	if err := a.Bus.Broadcast(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrNetworkRefused, err)
	}
	a.Stats.Sent.Add(1)
	return nil
}

// Close currently has no effect: Send, Broadcast and the receive loop keep
// working afterwards. It does not close the underlying Bus, which the owner
// may share with other components.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {})
}
