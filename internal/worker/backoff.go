package worker

import "time"

// Backoff tracks the extra pause the sweep adds while the provider throttles it.
type Backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64

	current     time.Duration
	rateLimited int
}

// NewBackoff creates a Backoff starting at zero.
func NewBackoff(initial, max time.Duration, multiplier float64) *Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{initial: initial, max: max, multiplier: multiplier}
}

// OnRateLimited escalates the pause and returns it. A provider hint wins over
// the geometric step; either way the pause never exceeds max.
func (b *Backoff) OnRateLimited(hint time.Duration) time.Duration {
	b.rateLimited++
	switch {
	case hint > 0:
		b.current = hint
	case b.current == 0:
		b.current = b.initial
	default:
		b.current = time.Duration(float64(b.current) * b.multiplier)
	}
	if b.current > b.max {
		b.current = b.max
	}
	return b.current
}

// Reset drops the pause back to zero.
func (b *Backoff) Reset() {
	b.current = 0
	b.rateLimited = 0
}

// Current returns the pause to add after the next item.
func (b *Backoff) Current() time.Duration { return b.current }

// Consecutive returns how many rate-limited items happened in a row.
func (b *Backoff) Consecutive() int { return b.rateLimited }
