package errors

import (
	"context"
	"errors"
	"time"
)

// Backoff is an exponential retry schedule.
type Backoff struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff allows three retries after the first attempt: 200ms, 400ms, 800ms.
var DefaultBackoff = Backoff{
	Attempts:   3,
	Initial:    200 * time.Millisecond,
	Max:        5 * time.Second,
	Multiplier: 2,
}

// Delay returns the wait before retry n, counted from 1.
func (b Backoff) Delay(n int) time.Duration {
	d := float64(b.Initial)
	for i := 1; i < n; i++ {
		d *= b.Multiplier
		if b.Max > 0 && time.Duration(d) >= b.Max {
			return b.Max
		}
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, fails with an error IsRetryable rejects, or the retries run out.
// The last error is returned. Waiting stops as soon as ctx is done.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	for retry := 0; ; retry++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || !IsRetryable(err) || retry >= b.Attempts {
			return err
		}

		wait := time.NewTimer(b.Delay(retry + 1))
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}

// WithRetry runs fn under DefaultBackoff.
func WithRetry(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return DefaultBackoff.Do(ctx, fn)
}

// IsRetryable reports whether err is an AppError marked retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Retryable
}
