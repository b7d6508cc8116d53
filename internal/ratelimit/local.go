package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*LocalLimiter)(nil)

// LocalLimiter is a process-local per-identity limiter with burst 1, so
// consecutive sends for one identity are spaced 1/maxPerSecond apart.
// Suitable only for single-process deployments; multi-process setups must
// use the Redis-backed limiter so the spacing holds in aggregate.
type LocalLimiter struct {
	perSecond rate.Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLocalLimiter(maxPerSecond int) (*LocalLimiter, error) {
	if maxPerSecond < 1 {
		return nil, fmt.Errorf("max per second must be at least 1")
	}

	return &LocalLimiter{
		perSecond: rate.Limit(maxPerSecond),
		limiters:  make(map[string]*rate.Limiter),
	}, nil
}

func (l *LocalLimiter) Wait(ctx context.Context, identity string) error {
	if identity == "" {
		return fmt.Errorf("identity is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return l.limiterFor(identity).Wait(ctx)
}

func (l *LocalLimiter) limiterFor(identity string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[identity]
	if !ok {
		limiter = rate.NewLimiter(l.perSecond, 1)
		l.limiters[identity] = limiter
	}
	return limiter
}
