package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/marketsync/internal/domain/integration"
)

// InMemoryRunLock implements integration.RunLock inside one process
// WARNING: it does not exclude runs started by other instances
type InMemoryRunLock struct {
	mu    sync.Mutex
	held  map[string]heldLock
	seq   uint64
	nowFn func() time.Time
}

type heldLock struct {
	token     uint64
	expiresAt time.Time
}

// NewInMemoryRunLock creates an empty in-memory lock table
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		held:  make(map[string]heldLock),
		nowFn: time.Now,
	}
}

// Acquire takes name unless another holder has it and it has not expired
func (l *InMemoryRunLock) Acquire(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if h, ok := l.held[name]; ok && now.Before(h.expiresAt) {
		return nil, integration.ErrLockHeld
	}

	l.seq++
	token := l.seq
	l.held[name] = heldLock{token: token, expiresAt: now.Add(ttl)}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// A later holder may own the name after expiry
			if h, ok := l.held[name]; ok && h.token == token {
				delete(l.held, name)
			}
		})
		return nil
	}, nil
}

var _ integration.RunLock = (*InMemoryRunLock)(nil)
