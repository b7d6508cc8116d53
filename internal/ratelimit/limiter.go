package ratelimit

import "context"

// RateLimiter spaces outbound dispatches per sending identity. Wait
// blocks until the identity may send again or the context ends. It
// guarantees spacing only, not ordering, across callers sharing an
// identity.
type RateLimiter interface {
	Wait(ctx context.Context, identity string) error
}
