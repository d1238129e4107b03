package ecommerce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialDelay: time.Millisecond, Multiplier: 1.5}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 3*time.Second, p.InitialDelay)
	assert.InDelta(t, 1.5, p.Multiplier, 1e-9)
}

func TestRetryPolicy_Do(t *testing.T) {
	transient := errors.New("connection reset")
	permanent := errors.New("bad request")

	tests := []struct {
		name      string
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{name: "succeeds first time", wantCalls: 1},
		{name: "retries transient errors", failures: []error{retryable(transient), retryable(transient)}, wantCalls: 3},
		{name: "stops on permanent error", failures: []error{permanent}, wantCalls: 1, wantErr: permanent},
		{
			name:      "gives up after max attempts",
			failures:  []error{retryable(transient), retryable(transient), retryable(transient), retryable(transient)},
			wantCalls: 3,
			wantErr:   transient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, IsRetryable(err), "returned error is unwrapped")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryPolicy_Do_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 1}

	calls := 0
	err := policy.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return retryable(errors.New("timeout"))
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_Do_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = RetryPolicy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return retryable(errors.New("timeout"))
	})
	assert.Equal(t, 1, calls)
}
