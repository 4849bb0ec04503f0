// Package backoff computes retry wait intervals for the write engine.
//
// The policy is a bounded exponential: each wait is the current interval
// clamped to the configured maximum, and the interval grows by the
// configured factor after every use. Reset returns the interval to the
// minimum at the start of each new record's retry sequence.
package backoff

import "time"

// MinWait is the smallest permitted wait interval. A configured minimum
// at or below zero is corrected to this value.
const MinWait = time.Microsecond

// Policy carries the retry-wait state for one retry sequence.
// It is not safe for concurrent use; the write engine owns one instance.
type Policy struct {
	min    time.Duration
	max    time.Duration
	factor float64
	cur    time.Duration
}

// New creates a policy with the given bounds and growth factor.
// min is clamped to at least [MinWait], max to at least min, and the
// growth factor to at least 1 so waits never decrease.
func New(min, max time.Duration, factor float64) *Policy {
	if min < MinWait {
		min = MinWait
	}
	if max < min {
		max = min
	}
	if factor < 1 {
		factor = 1
	}
	return &Policy{min: min, max: max, factor: factor, cur: min}
}

// Next returns the wait interval for the coming retry and advances the
// state. The returned interval never exceeds the configured maximum.
func (p *Policy) Next() time.Duration {
	wait := p.cur
	if wait > p.max {
		wait = p.max
	}
	p.cur = time.Duration(float64(wait) * p.factor)
	return wait
}

// Reset returns the interval to the configured minimum.
func (p *Policy) Reset() {
	p.cur = p.min
}

// Current returns the interval the next call to Next will use, before
// clamping.
func (p *Policy) Current() time.Duration {
	return p.cur
}
