package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds the retries taken after transport failures.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy makes five attempts with delays of 1s, 2s, 4s and 8s between them.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Second}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt-1))
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the SleepFunc backed by a real timer.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as a transport failure that Retry may retry.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// ExhaustedError is returned by Retry when every attempt failed with a
// retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Retry calls fn until it succeeds, returns an error not marked Retryable, or
// the policy's attempts run out. Between attempts n and n+1 it sleeps
// p.Delay(n). Errors not marked Retryable are returned unchanged.
func Retry[T any](ctx context.Context, p Policy, sleep SleepFunc, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	if sleep == nil {
		sleep = Sleep
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := fn(attempt)
		if err == nil {
			return v, nil
		}
		var re *retryableError
		if !errors.As(err, &re) {
			return zero, err
		}
		lastErr = re.err
		if attempt == maxAttempts {
			break
		}
		if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
			return zero, &ExhaustedError{Attempts: attempt, Err: errors.Join(lastErr, serr)}
		}
	}
	return zero, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}
