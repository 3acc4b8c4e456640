// Package backoff computes retry delays for failed scrape attempts.
// Delays grow exponentially with the attempt count and carry bounded
// random jitter so concurrent retries against the same endpoint do not
// collide. There is no delay ceiling; the scheduler's retry ceiling caps
// total wait instead.
package backoff

import (
	"math/rand"
	"time"
)

// Default policy values
const (
	// DefaultBaseDelay is the delay before the first retry
	DefaultBaseDelay = 5 * time.Second

	// DefaultJitterMax bounds the random component added to every delay
	DefaultJitterMax = 2 * time.Second
)

// Policy maps an attempt count to a retry delay. The zero value is not
// usable; construct with NewPolicy.
type Policy struct {
	// BaseDelay is the exponential base: attempt 1 waits at least BaseDelay
	BaseDelay time.Duration
	// JitterMax bounds the uniform random addition; the jitter is always
	// in [0, JitterMax)
	JitterMax time.Duration

	rand *rand.Rand
}

// NewPolicy creates a Policy, substituting defaults for non-positive values.
func NewPolicy(baseDelay, jitterMax time.Duration) *Policy {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if jitterMax <= 0 {
		jitterMax = DefaultJitterMax
	}
	return &Policy{
		BaseDelay: baseDelay,
		JitterMax: jitterMax,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the wait before retrying the given attempt. For attempt
// a >= 1 the result is BaseDelay * 2^(a-1) plus jitter in [0, JitterMax).
// Attempt counts below 1 are treated as 1.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exponential := p.BaseDelay * time.Duration(1<<(attempt-1))
	jitter := time.Duration(p.rand.Int63n(int64(p.JitterMax)))

	return exponential + jitter
}
