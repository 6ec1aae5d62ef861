// Package lock provides per-key locking so that operations on the same
// player or redeem code never interleave.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ErrLockTimeout is returned when a key stays held past the wait budget.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// keyMutex is a one-slot semaphore with reference counting for cleanup.
type keyMutex struct {
	ch       chan struct{}
	refCount int
}

// KeyLock provides per-key mutual exclusion. Entries are created on first
// use and dropped once no goroutine holds or waits for them.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

// ref retrieves or creates the mutex for key and takes a reference on it.
func (kl *KeyLock) ref(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{ch: make(chan struct{}, 1)}
		kl.locks[key] = m
	}
	m.refCount++
	return m
}

func (kl *KeyLock) unref(key string, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m.refCount--
	if m.refCount == 0 {
		delete(kl.locks, key)
	}
}

// Lock blocks until the lock for key is held.
func (kl *KeyLock) Lock(key string) {
	m := kl.ref(key)
	m.ch <- struct{}{}
}

// Unlock releases the lock for key. It must be held.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("lock: unlock of unlocked key %q", key))
	}
	<-m.ch
	kl.unref(key, m)
}

// tryLock acquires the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (kl *KeyLock) tryLock(key string) bool {
	m := kl.ref(key)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		kl.unref(key, m)
		return false
	}
}

// LockWithTimeout waits up to timeout, or until ctx is done, for the lock.
// It returns ErrLockTimeout when the wait gives up.
func (kl *KeyLock) LockWithTimeout(ctx context.Context, key string, timeout time.Duration) error {
	if kl.tryLock(key) {
		return nil
	}

	m := kl.ref(key)

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case m.ch <- struct{}{}:
		return nil
	case <-timeoutCtx.Done():
		kl.unref(key, m)
		return fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
}

// WithLock executes fn while holding the lock for key.
func (kl *KeyLock) WithLock(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	return kl.WithLocks(ctx, []string{key}, timeout, fn)
}

// WithLocks executes fn while holding the locks of every key. Keys are
// taken in sorted order so two callers can never deadlock.
func (kl *KeyLock) WithLocks(ctx context.Context, keys []string, timeout time.Duration, fn func() error) error {
	keys = lo.Uniq(keys)
	sort.Strings(keys)

	held := make([]string, 0, len(keys))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			kl.Unlock(held[i])
		}
	}()

	for _, key := range keys {
		if err := kl.LockWithTimeout(ctx, key, timeout); err != nil {
			return err
		}
		held = append(held, key)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// Size returns the number of keys currently tracked.
func (kl *KeyLock) Size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}

// PlayerKey is the lock key for a player's balance and sessions.
func PlayerKey(id string) string { return "player:" + id }

// CodeKey is the lock key for a redeem code.
func CodeKey(code string) string { return "code:" + code }
