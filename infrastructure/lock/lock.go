// Package lock provides per-key mutual exclusion within one process.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockHeld is returned by TryAcquire when the key is already held.
var ErrLockHeld = errors.New("lock already held")

// Locker serializes work on a key.
type Locker interface {
	// WithLock runs fn while holding the lock for key. It waits until the
	// lock is free or ctx is done.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is a Locker holding one mutex per key. Keys that nobody holds
// or waits for are dropped, so memory stays proportional to contention.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Acquire blocks until the key is held or ctx is done. The returned function
// releases the lock and must be called exactly once.
func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	e := k.ref(key)

	select {
	case e.ch <- struct{}{}:
		return k.releaser(key, e), nil
	case <-ctx.Done():
		k.unref(key, e)
		return nil, ctx.Err()
	}
}

// TryAcquire takes the lock if it is free and returns ErrLockHeld otherwise.
func (k *KeyedMutex) TryAcquire(key string) (func(), error) {
	e := k.ref(key)

	select {
	case e.ch <- struct{}{}:
		return k.releaser(key, e), nil
	default:
		k.unref(key, e)
		return nil, ErrLockHeld
	}
}

// WithLock runs fn while holding the lock for key.
func (k *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := k.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Held reports whether the key is currently held.
func (k *KeyedMutex) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	return ok && len(e.ch) == 1
}

func (k *KeyedMutex) ref(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedMutex) unref(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *KeyedMutex) releaser(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.unref(key, e)
		})
	}
}

var _ Locker = (*KeyedMutex)(nil)

// AgentKey returns the lock key guarding an agent aggregate.
func AgentKey(agentID string) string {
	return "agent:" + agentID
}
