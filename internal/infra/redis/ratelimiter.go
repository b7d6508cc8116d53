package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campaignkit/drip-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultMessagesPerSec = 1
	stateTTLSeconds       = 60
)

// spacingScript keeps a next-eligible-instant (unix millis) per identity.
// It returns 0 when the caller may send now, otherwise the number of
// milliseconds to wait. State lives in Redis so the spacing holds across
// all scheduler processes sharing an identity.
var spacingScript = goredis.NewScript(`
local eligible = tonumber(redis.call("GET", KEYS[1]) or "0")
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
if eligible > now then
  return eligible - now
end
redis.call("SET", KEYS[1], now + interval, "EX", tonumber(ARGV[3]))
return 0
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter spaces sends per identity: a leaky bucket of depth
// one, 1000/messagesPerSec milliseconds between dispatches.
type RedisRateLimiter struct {
	client   *goredis.Client
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	script   *goredis.Script
}

func NewRedisRateLimiter(client *goredis.Client, messagesPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, messagesPerSec, time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	messagesPerSec int,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if messagesPerSec <= 0 {
		messagesPerSec = defaultMessagesPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:   client,
		interval: time.Second / time.Duration(messagesPerSec),
		now:      nowFn,
		sleep:    sleepFn,
		script:   spacingScript,
	}, nil
}

// Reserve checks and, when eligible, consumes the identity's send slot.
// It returns the remaining wait when the identity must hold off.
func (r *RedisRateLimiter) Reserve(ctx context.Context, identity string) (time.Duration, error) {
	if r == nil || r.client == nil || r.script == nil {
		return 0, fmt.Errorf("rate limiter is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(identity))
	if normalized == "" {
		return 0, fmt.Errorf("identity is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("sendspacing:%s", normalized)
	waitMillis, err := r.script.Run(ctx, r.client, []string{key},
		r.now().UTC().UnixMilli(),
		r.interval.Milliseconds(),
		stateTTLSeconds,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate send spacing: %w", err)
	}

	return time.Duration(waitMillis) * time.Millisecond, nil
}

func (r *RedisRateLimiter) Wait(ctx context.Context, identity string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		wait, err := r.Reserve(ctx, identity)
		if err != nil {
			return err
		}
		if wait <= 0 {
			return nil
		}

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
