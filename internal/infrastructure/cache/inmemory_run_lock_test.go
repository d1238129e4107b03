package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRunLock_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire is refused while held", func(t *testing.T) {
		lock := NewInMemoryRunLock()

		release, err := lock.Acquire(ctx, "marketsync:orders", time.Hour)
		require.NoError(t, err)
		require.NotNil(t, release)

		_, err = lock.Acquire(ctx, "marketsync:orders", time.Hour)
		assert.ErrorIs(t, err, integration.ErrLockHeld)
	})

	t.Run("different names do not conflict", func(t *testing.T) {
		lock := NewInMemoryRunLock()

		_, err := lock.Acquire(ctx, "marketsync:orders", time.Hour)
		require.NoError(t, err)
		_, err = lock.Acquire(ctx, "marketsync:payouts", time.Hour)
		assert.NoError(t, err)
	})

	t.Run("release frees the name", func(t *testing.T) {
		lock := NewInMemoryRunLock()

		release, err := lock.Acquire(ctx, "marketsync:orders", time.Hour)
		require.NoError(t, err)
		require.NoError(t, release(ctx))

		_, err = lock.Acquire(ctx, "marketsync:orders", time.Hour)
		assert.NoError(t, err)
	})

	t.Run("expired lock can be taken", func(t *testing.T) {
		lock := NewInMemoryRunLock()
		now := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
		lock.nowFn = func() time.Time { return now }

		staleRelease, err := lock.Acquire(ctx, "marketsync:orders", time.Minute)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = lock.Acquire(ctx, "marketsync:orders", time.Minute)
		require.NoError(t, err)

		// The stale holder must not release the new holder's lock
		require.NoError(t, staleRelease(ctx))
		_, err = lock.Acquire(ctx, "marketsync:orders", time.Minute)
		assert.ErrorIs(t, err, integration.ErrLockHeld)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		lock := NewInMemoryRunLock()

		release, err := lock.Acquire(ctx, "marketsync:orders", time.Hour)
		require.NoError(t, err)
		require.NoError(t, release(ctx))
		_, err = lock.Acquire(ctx, "marketsync:orders", time.Hour)
		require.NoError(t, err)

		require.NoError(t, release(ctx))
		_, err = lock.Acquire(ctx, "marketsync:orders", time.Hour)
		assert.ErrorIs(t, err, integration.ErrLockHeld)
	})
}

func TestInMemoryRunLock_Concurrent(t *testing.T) {
	lock := NewInMemoryRunLock()
	ctx := context.Background()

	var wg sync.WaitGroup
	var winners atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lock.Acquire(ctx, "marketsync:transactions", time.Hour); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
