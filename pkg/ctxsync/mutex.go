// Package ctxsync contains synchronization primitives that can be abandoned
// through a [context.Context].
package ctxsync

import (
	"context"
)

// A Mutex is a mutual exclusion lock whose acquisition can be cancelled.
// The zero value is not usable; create one with [NewMutex].
type Mutex struct {
	sem chan struct{}
}

// NewMutex creates a new unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{sem: make(chan struct{}, 1)}
}

// Lock locks the mutex, waiting as long as needed.
func (m *Mutex) Lock() {
	m.sem <- struct{}{}
}

// LockWithContext locks the mutex, returning the context error if ctx is done
// before the lock is acquired.
func (m *Mutex) LockWithContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.sem <- struct{}{}:
		return nil
	}
}

// TryLock tries to lock m and reports whether it succeeded.
func (m *Mutex) TryLock() bool {
	select {
	case m.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock unlocks m. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	select {
	case <-m.sem:
	default:
		panic("ctxsync: unlock of unlocked mutex")
	}
}

// Do runs fn while holding the lock.
func (m *Mutex) Do(ctx context.Context, fn func() error) error {
	if err := m.LockWithContext(ctx); err != nil {
		return err
	}
	defer m.Unlock()
	return fn()
}
