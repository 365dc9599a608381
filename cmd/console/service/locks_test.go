package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/datacove/console/common/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocks_AcquireRelease(t *testing.T) {
	locks := NewKeyedLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "ds-1", 50*time.Millisecond)
	require.NoError(t, err)
	release()

	// Reacquire after release succeeds immediately
	release, err = locks.Acquire(ctx, "ds-1", 50*time.Millisecond)
	require.NoError(t, err)
	release()
}

func TestKeyedLocks_BusyOnHeldKey(t *testing.T) {
	locks := NewKeyedLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "ds-1", 50*time.Millisecond)
	require.NoError(t, err)
	defer release()

	_, err = locks.Acquire(ctx, "ds-1", 20*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBusy)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestKeyedLocks_IndependentKeys(t *testing.T) {
	locks := NewKeyedLocks()
	ctx := context.Background()

	release1, err := locks.Acquire(ctx, "ds-1", 20*time.Millisecond)
	require.NoError(t, err)
	defer release1()

	release2, err := locks.Acquire(ctx, "ds-2", 20*time.Millisecond)
	require.NoError(t, err)
	defer release2()
}

func TestKeyedLocks_ContextCancel(t *testing.T) {
	locks := NewKeyedLocks()

	release, err := locks.Acquire(context.Background(), "ds-1", time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = locks.Acquire(ctx, "ds-1", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyedLocks_Fence(t *testing.T) {
	locks := NewKeyedLocks()
	ctx := context.Background()

	locks.Fence("ds-1", "pointer diverged")
	assert.True(t, locks.Fenced("ds-1"))
	assert.False(t, locks.Fenced("ds-2"))

	_, err := locks.Acquire(ctx, "ds-1", 50*time.Millisecond)
	assert.ErrorIs(t, err, apperrors.ErrInconsistent)

	// Other keys stay writable
	release, err := locks.Acquire(ctx, "ds-2", 50*time.Millisecond)
	require.NoError(t, err)
	release()
}

func TestKeyedLocks_SerializesWriters(t *testing.T) {
	locks := NewKeyedLocks()
	ctx := context.Background()

	const writers = 20
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, "ds-1", 5*time.Second)
			if err != nil {
				t.Error(err)
				return
			}
			defer release()
			// Non-atomic increment; only mutual exclusion keeps it exact
			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, writers, counter)
}
