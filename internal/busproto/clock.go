package busproto

import "time"

// Clock is the time seam used by the codec so replay/skew window tests are
// deterministic rather than racing the wall clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
