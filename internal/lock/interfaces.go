// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For distributed deployments, Redis-based locks can be used.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotAcquired indicates the lock is held by someone else.
	ErrNotAcquired = errors.New("lock not acquired")
)

// Locker defines the interface for distributed/local locking.
// This abstraction allows switching between in-memory locks (single-node)
// and Redis-based locks (distributed) without changing business logic.
//
// Each Locker instance has its own owner identity: Release only frees
// locks that this instance acquired.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock held by this locker.
	// Returns true if the lock was released, false if it wasn't held by us.
	Release(ctx context.Context, key string) (bool, error)

	// IsHeld checks if the lock is currently held by anyone.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// RetryPolicy controls how WithLock waits for a busy lock.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryPolicy waits up to roughly 30 seconds.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 60, Delay: 500 * time.Millisecond}

// WithLock runs fn while holding key. It returns ErrNotAcquired when the
// lock stays busy for the whole retry policy.
func WithLock(ctx context.Context, locker Locker, key string, ttl time.Duration, policy RetryPolicy, fn func(ctx context.Context) error) (err error) {
	acquired, err := locker.AcquireWithRetry(ctx, key, ttl, policy.MaxRetries, policy.Delay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}

	defer func() {
		// Release with a fresh context so a cancelled caller still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, relErr := locker.Release(releaseCtx, key); relErr != nil && err == nil {
			err = fmt.Errorf("failed to release lock %s: %w", key, relErr)
		}
	}()

	return fn(ctx)
}

// retryAcquire implements AcquireWithRetry on top of an acquire function.
func retryAcquire(ctx context.Context, acquire func() (bool, error), maxRetries int, retryDelay time.Duration) (bool, error) {
	for i := 0; i <= maxRetries; i++ {
		acquired, err := acquire()
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

		// Don't sleep on the last attempt.
		if i < maxRetries {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return false, nil
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// OwnershipMigration returns the lock key guarding the ownership migration.
func (lockKeys) OwnershipMigration() string {
	return "lock:migration:ownership"
}
