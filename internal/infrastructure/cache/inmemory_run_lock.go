package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryRunLock is a process-local RunLock for single-instance deployments and tests
type InMemoryRunLock struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	now     func() time.Time
}

// NewInMemoryRunLock creates a new in-memory lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// TryLock acquires key unless an unexpired holder exists
func (l *InMemoryRunLock) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, held := l.entries[key]; held && now.Before(exp) {
		return false, nil
	}
	l.entries[key] = now.Add(ttl)
	return true, nil
}

// Unlock releases key
func (l *InMemoryRunLock) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// Held reports whether key is currently locked
func (l *InMemoryRunLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.entries[key]
	return ok && l.now().Before(exp)
}
