package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/campaignkit/drip-engine/internal/lock"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock key only when it still holds our token, so
// an expired-and-reacquired lock is never released by the old holder.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.Locker = (*RedisLocker)(nil)

// RedisLocker implements short-TTL scope locks with SET NX PX.
type RedisLocker struct {
	client *goredis.Client

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLocker(client *goredis.Client) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisLocker{
		client: client,
		tokens: make(map[string]string),
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("locker is not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("lock key is required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("lock ttl must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	if !acquired {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()

	return true, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("locker is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("failed to release lock %q: %w", key, err)
	}

	return nil
}
