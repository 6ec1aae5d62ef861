// Package service provides business logic implementations. Every public
// operation takes the lock of each player or code it touches and runs its
// reads and writes as one repository unit of work.
package service

import (
	"context"
	"errors"
	"time"

	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/repository"
)

// Common errors for service operations.
var (
	ErrPlayerNotFound  = repository.ErrPlayerNotFound
	ErrNotSessionOwner = errors.New("session belongs to another player")
)

// Clock returns the current time.
type Clock func() time.Time

// Env holds what every service shares.
type Env struct {
	Store       repository.Store
	Locks       *lock.KeyLock
	LockTimeout time.Duration
	Clock       Clock
}

// NewEnv creates an Env using the wall clock.
func NewEnv(store repository.Store, locks *lock.KeyLock, lockTimeout time.Duration) *Env {
	return &Env{
		Store:       store,
		Locks:       locks,
		LockTimeout: lockTimeout,
		Clock:       time.Now,
	}
}

func (e *Env) now() time.Time {
	return e.Clock().UTC()
}

// atomic runs fn as one unit of work while holding the given lock keys.
func (e *Env) atomic(ctx context.Context, keys []string, fn func(tx repository.Tx) error) error {
	return e.Locks.WithLocks(ctx, keys, e.LockTimeout, func() error {
		return e.Store.Atomic(ctx, fn)
	})
}

// view runs fn as a read-only unit of work.
func (e *Env) view(ctx context.Context, fn func(tx repository.Tx) error) error {
	return e.Store.View(ctx, fn)
}
