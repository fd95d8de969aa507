package transport

import "errors"

var (
	// ErrTimeout is returned when a Send's deadline elapses without a
	// matching response. Retryable per spec §4.2.
	ErrTimeout = errors.New("transport: timeout error")

	// ErrNetworkRefused indicates the bus rejected the send outright
	// (e.g. unknown target). Terminal — never retried.
	ErrNetworkRefused = errors.New("transport: network refused")

	// ErrCancelled is returned when the caller's context is cancelled
	// before a response arrives; no further retries are attempted.
	ErrCancelled = errors.New("transport: cancelled")

	// ErrClosed names a closed adapter. No Adapter method returns it at
	// present, since Adapter.Close does not stop Send or Broadcast.
	ErrClosed = errors.New("transport: adapter closed")
)
