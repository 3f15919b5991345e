package errors

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how often a failed store call is repeated.
type RetryPolicy struct {
	// Attempts counts every call, the first included.
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy backs WithRetry: up to four calls, waiting 200ms,
// 400ms and 800ms in between.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:  4,
	BaseDelay: 200 * time.Millisecond,
	MaxDelay:  2 * time.Second,
}

// WithRetry runs fn under DefaultRetryPolicy.
func WithRetry(ctx context.Context, fn func() error) error {
	return DefaultRetryPolicy.Run(ctx, fn)
}

// Run calls fn until it succeeds or returns an error that is not
// retryable. It gives up with the last error once attempts run out or the
// next wait would end after ctx's deadline, and with ctx.Err() once ctx
// is done.
func (p RetryPolicy) Run(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := max(p.Attempts, 1)
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn()
		if err == nil || !IsRetryable(err) || attempt == attempts {
			return err
		}

		wait := p.backoff(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(wait).After(deadline) {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// backoff doubles BaseDelay per failed attempt, capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	wait := p.BaseDelay
	for i := 1; i < attempt && wait < p.MaxDelay; i++ {
		wait *= 2
	}
	if p.MaxDelay > 0 && wait > p.MaxDelay {
		return p.MaxDelay
	}
	return wait
}

// IsRetryable reports whether err is an AppError marked retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Retryable
}
