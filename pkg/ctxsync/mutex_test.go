package ctxsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/ctxsync"
)

// Multiple goroutines should not be able to acquire the same lock.
func TestLock(t *testing.T) {
	workers := 500

	n := 0
	mu := ctxsync.NewMutex()
	wg := sync.WaitGroup{}
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			n++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, n)
}

// A context cancelled while waiting should release the waiter with its error.
func TestCanceling(t *testing.T) {
	mu := ctxsync.NewMutex()
	mu.Lock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := mu.LockWithContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	mu.Unlock()
	assert.NoError(t, mu.LockWithContext(context.Background()))
	mu.Unlock()
}

// An already cancelled context should never acquire the lock.
func TestCancelledBeforeLock(t *testing.T) {
	mu := ctxsync.NewMutex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, mu.LockWithContext(ctx), context.Canceled)
	assert.True(t, mu.TryLock())
	assert.False(t, mu.TryLock())
	mu.Unlock()
}

// Do should hold the lock for the duration of fn and forward its error.
func TestDo(t *testing.T) {
	mu := ctxsync.NewMutex()
	err := mu.Do(context.Background(), func() error {
		assert.False(t, mu.TryLock())
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, mu.TryLock())
	mu.Unlock()
}

// Unlocking an unlocked mutex should panic.
func TestUnlockUnlocked(t *testing.T) {
	mu := ctxsync.NewMutex()
	assert.Panics(t, mu.Unlock)
}
