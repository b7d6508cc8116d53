package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisLockerAcquireIsExclusive(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	first, err := NewRedisLocker(client)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}
	second, err := NewRedisLocker(client)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	ctx := context.Background()
	ok, err := first.Acquire(ctx, "lock:tick", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	ok, err = second.Acquire(ctx, "lock:tick", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if ok {
		t.Fatal("second acquire must fail while the lock is held")
	}

	if err := first.Release(ctx, "lock:tick"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	ok, err = second.Acquire(ctx, "lock:tick", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Fatal("acquire should succeed after release")
	}
}

func TestRedisLockerReleaseOnlyOwnToken(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	holder, err := NewRedisLocker(client)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}
	stranger, err := NewRedisLocker(client)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	ctx := context.Background()
	if ok, err := holder.Acquire(ctx, "lock:tick", time.Minute); err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v", ok, err)
	}

	// A locker that never acquired the key releases nothing.
	if err := stranger.Release(ctx, "lock:tick"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !srv.Exists("lock:tick") {
		t.Fatal("lock must survive a release by a non-holder")
	}
}

func TestRedisLockerExpiredLockIsReacquirable(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker, err := NewRedisLocker(client)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	ctx := context.Background()
	if ok, err := locker.Acquire(ctx, "lock:tick", time.Second); err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v", ok, err)
	}

	srv.FastForward(2 * time.Second)

	ok, err := locker.Acquire(ctx, "lock:tick", time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Fatal("an expired lock should be reacquirable")
	}
}

func TestRedisLockerValidatesInput(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker, err := NewRedisLocker(client)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	if _, err := locker.Acquire(context.Background(), "  ", time.Minute); err == nil {
		t.Fatal("Acquire() should reject a blank key")
	}
	if _, err := locker.Acquire(context.Background(), "lock:x", 0); err == nil {
		t.Fatal("Acquire() should reject a non-positive ttl")
	}
}
