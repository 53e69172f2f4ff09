package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/lattice/pkg/ports"
)

// Locker implements ports.DistributedLocker within one process.
type Locker struct {
	mu    sync.Mutex
	held  map[string]uint64
	token uint64
}

// NewLocker creates an empty in-process locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]uint64)}
}

// TryLock acquires key if it is free. ttl is ignored: the lock lives until
// released.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[key]; taken {
		return nil, false, nil
	}
	l.token++
	token := l.token
	l.held[key] = token

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == token {
			delete(l.held, key)
		}
		return nil
	}, true, nil
}
