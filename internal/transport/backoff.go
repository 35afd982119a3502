package transport

import "time"

// Backoff computes reconnect delays. A disconnect requested by the server
// waits the base delay; anything else backs off exponentially, jumping to
// the maximum after too many consecutive failures. A connection that stayed
// up longer than StableAfter resets the counters.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	StableAfter time.Duration
	MaxFailures int

	attempt  int
	failures int
}

// Next returns the delay before the next connection attempt.
func (b *Backoff) Next(lasted time.Duration, serverInitiated bool) time.Duration {
	if lasted > b.StableAfter {
		b.Reset()
	}
	if serverInitiated {
		return b.Base
	}

	b.attempt++
	b.failures++

	if b.failures > b.MaxFailures {
		return b.Max
	}
	delay := b.Base << uint(min(b.attempt, 10))
	if delay <= 0 || delay > b.Max {
		delay = b.Max
	}
	return delay
}

// Attempt returns the number of reconnect attempts since the last reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Reset clears the failure counters.
func (b *Backoff) Reset() {
	b.attempt = 0
	b.failures = 0
}
