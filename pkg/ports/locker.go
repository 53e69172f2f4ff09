package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for cross-process concurrency control.
// The engine uses it to keep a single acquisition active across every process
// sharing the same hardware.
type DistributedLocker interface {
	// TryLock attempts to acquire the lock for the given key once, without waiting.
	// It returns acquired=false when somebody else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, bool, error)
}
