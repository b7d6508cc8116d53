package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

var _ Locker = (*LocalLocker)(nil)

// LocalLocker holds scope locks in process memory. Suitable only for
// single-process deployments; multi-process setups must use the
// Redis-backed locker so exclusion holds across instances.
type LocalLocker struct {
	now func() time.Time

	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		now:  time.Now,
		held: make(map[string]time.Time),
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("locker is not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("lock key is required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("lock ttl must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.held[key]; ok && l.now().Before(expiry) {
		return false, nil
	}
	l.held[key] = l.now().Add(ttl)
	return true, nil
}

func (l *LocalLocker) Release(ctx context.Context, key string) error {
	if l == nil {
		return fmt.Errorf("locker is not initialized")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
