// Package lock defines the short-lived keyed lock used around tick runs.
package lock

import (
	"context"
	"time"
)

// Locker acquires scope-keyed locks with a TTL after which the lock is
// considered abandoned. Acquire never blocks: a held lock returns false,
// an infrastructure failure returns an error (which callers must treat as
// "do not proceed without concurrency protection").
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
