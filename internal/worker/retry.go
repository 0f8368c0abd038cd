package worker

import (
	"math"
	"time"
)

// Retry defaults for completion attempts
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 2.0
	DefaultBackoffUnit = time.Second
)

// RetryPolicy decides how many completion attempts a job gets and how long
// to wait between them. It is a pure function of the attempt index.
type RetryPolicy struct {
	MaxAttempts int
	Base        float64
	Unit        time.Duration
}

// DefaultRetryPolicy returns 3 attempts with 1s, 2s, 4s... backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Base:        DefaultBackoffBase,
		Unit:        DefaultBackoffUnit,
	}
}

// withDefaults fills zero fields from DefaultRetryPolicy
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Base <= 0 {
		p.Base = DefaultBackoffBase
	}
	if p.Unit <= 0 {
		p.Unit = DefaultBackoffUnit
	}
	return p
}

// HasNext reports whether another attempt follows the zero-indexed attempt i
func (p RetryPolicy) HasNext(i int) bool {
	return i+1 < p.MaxAttempts
}

// DelayBeforeAttempt returns the wait after the failed zero-indexed attempt
// i: Unit * Base^i
func (p RetryPolicy) DelayBeforeAttempt(i int) time.Duration {
	if i < 0 {
		i = 0
	}
	return time.Duration(float64(p.Unit) * math.Pow(p.Base, float64(i)))
}

// MaxBackoff is the total time spent waiting when every attempt fails
func (p RetryPolicy) MaxBackoff() time.Duration {
	var total time.Duration
	for i := 0; p.HasNext(i); i++ {
		total += p.DelayBeforeAttempt(i)
	}
	return total
}
