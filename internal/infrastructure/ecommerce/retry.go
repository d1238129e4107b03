package ecommerce

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries an operation with exponential backoff
type RetryPolicy struct {
	// MaxAttempts includes the first attempt
	MaxAttempts int
	// InitialDelay is the wait before the second attempt
	InitialDelay time.Duration
	// Multiplier scales the delay after each retry
	Multiplier float64
}

// DefaultRetryPolicy returns 5 attempts starting at 3s and growing by 1.5x
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 3 * time.Second,
		Multiplier:   1.5,
	}
}

// retryableError marks an error as worth another attempt
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// retryable wraps err so RetryPolicy.Do tries again
func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked retryable
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. The last error is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	delay := p.InitialDelay
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt >= attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(unwrapRetryable(err), ctx.Err())
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * multiplier)
	}
	return unwrapRetryable(err)
}

func unwrapRetryable(err error) error {
	if re, ok := err.(*retryableError); ok {
		return re.err
	}
	return err
}
