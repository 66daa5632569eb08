package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)
	return goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

func TestRedisLockClientShortCircuitsWhenHeld(t *testing.T) {
	redis := newTestRedis(t)
	underlying := &fakeLockClient{}
	client := NewRedisLockClient(underlying, redis)

	ctx := context.Background()
	if _, err := client.AcquireLock(ctx, "k1", "owner-a", time.Minute); err != nil {
		t.Fatalf("first AcquireLock() error = %v", err)
	}
	if _, err := client.AcquireLock(ctx, "k1", "owner-b", time.Minute); err != ErrLockBusy {
		t.Errorf("second AcquireLock() error = %v, want ErrLockBusy", err)
	}
}

func TestRedisLockClientReleaseClearsFastPath(t *testing.T) {
	redis := newTestRedis(t)
	underlying := &fakeLockClient{}
	client := NewRedisLockClient(underlying, redis)

	ctx := context.Background()
	handle, err := client.AcquireLock(ctx, "k1", "owner-a", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if err := client.Release(ctx, handle); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := client.AcquireLock(ctx, "k1", "owner-b", time.Minute); err != nil {
		t.Errorf("AcquireLock() after release error = %v, want nil", err)
	}
}
