package provider

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy governs how the Selector retries a transient failure on one
// provider before falling back to the next.
type RetryPolicy struct {
	// MaxRetries is how many times a failed attempt is retried on the
	// same provider. Total attempts per provider is 1 + MaxRetries.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// Multiplier grows the delay on each subsequent retry.
	Multiplier float64

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// MaxFallbacks caps automatic provider substitutions per request.
	MaxFallbacks int
}

// DefaultRetryPolicy returns the policy used when configuration does not
// override it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		BaseDelay:    500 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
		MaxFallbacks: 2,
	}
}

// delay computes the backoff before retry number retry (zero-based), with
// plus or minus ten percent jitter to avoid thundering-herd alignment. A
// backend Retry-After hint overrides the computed schedule outright.
func (p RetryPolicy) delay(retry int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}

	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2
	}

	d := time.Duration(float64(base) * math.Pow(mult, float64(retry)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	jitter := 1 + (rand.Float64()*0.2 - 0.1)
	return time.Duration(float64(d) * jitter)
}
