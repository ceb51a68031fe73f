package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is the single-instance fallback when Redis is not
// configured. Same semantics as RedisLocker, scoped to this process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	locker := &MemoryLocker{
		locks: make(map[string]time.Time),
	}
	go locker.cleanup()
	return locker
}

// Acquire takes the lock if free or expired
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, held := l.locks[key]; held && time.Now().Before(expiry) {
		return false, nil
	}
	l.locks[key] = time.Now().Add(ttl)
	return true, nil
}

// Release frees the lock
func (l *MemoryLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}

// cleanup drops expired entries so abandoned keys do not accumulate
func (l *MemoryLocker) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		l.mu.Lock()
		for key, expiry := range l.locks {
			if now.After(expiry) {
				delete(l.locks, key)
			}
		}
		l.mu.Unlock()
	}
}
