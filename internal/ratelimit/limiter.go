// Package ratelimit implements sliding-window limits for bot updates and order submissions.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// Backend names the limiter that answered: "redis" or "memory".
	Backend string
}

// RetryAfter is the whole number of seconds until the window frees a slot, at least one.
// A result without ResetAt falls back to the full window.
func (r *Result) RetryAfter(now time.Time, window time.Duration) int {
	wait := window
	if r != nil && !r.ResetAt.IsZero() {
		wait = r.ResetAt.Sub(now)
	}
	return max(1, int(math.Ceil(wait.Seconds())))
}

// Limiter counts events per key inside a sliding window.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")
