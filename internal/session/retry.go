package session

import "time"

// Retry policy defaults. The first retry is immediate; later delays double
// from BaseBackoff up to MaxBackoff.
const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = time.Second
	DefaultMaxBackoff  = 8 * time.Second
)

// backoffDelay returns the delay before retry number attempt (0-based).
// The resulting schedule is [0, base, 2*base, 4*base, ...] capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
