package transport

import "time"

// SendOptions configures a single Adapter.Send call (spec §4.2).
type SendOptions struct {
	Timeout         time.Duration // default 5s
	Retries         int           // default 2, exponential backoff from 200ms
	ExpectsResponse bool
}

// DefaultSendOptions returns spec-default options for a response-expecting send.
func DefaultSendOptions() SendOptions {
	return SendOptions{
		Timeout:         5 * time.Second,
		Retries:         2,
		ExpectsResponse: true,
	}
}

func (o SendOptions) withDefaults() SendOptions {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

const initialBackoff = 200 * time.Millisecond
