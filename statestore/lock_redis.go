package statestore

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisLockClient wraps a Client, adding a Redis-backed fast-path check in
// front of the canonical sidecar-object lock. The sidecar object remains the
// source of truth: Redis only short-circuits the common case where a lock is
// already held, avoiding a conditional-write round trip to the object store.
// A Redis outage degrades to the sidecar-object path alone.
type RedisLockClient struct {
	Client
	redis *goredis.Client
}

// NewRedisLockClient builds a RedisLockClient around an existing Client.
func NewRedisLockClient(underlying Client, redis *goredis.Client) *RedisLockClient {
	return &RedisLockClient{Client: underlying, redis: redis}
}

func (c *RedisLockClient) AcquireLock(ctx context.Context, key, ownerID string, ttl time.Duration) (*LockHandle, error) {
	if c.redis != nil {
		ok, err := c.redis.SetNX(ctx, redisLockKey(key), ownerID, ttl).Result()
		if err == nil && !ok {
			return nil, ErrLockBusy
		}
		// err != nil (Redis unavailable) falls through to the canonical path.
	}

	handle, err := c.Client.AcquireLock(ctx, key, ownerID, ttl)
	if err != nil && c.redis != nil {
		c.redis.Del(ctx, redisLockKey(key))
	}
	return handle, err
}

func (c *RedisLockClient) Release(ctx context.Context, handle *LockHandle) error {
	if c.redis != nil && handle != nil {
		c.redis.Del(ctx, redisLockKey(handle.Key))
	}
	return c.Client.Release(ctx, handle)
}

func redisLockKey(stateKey string) string {
	return "conductor:lock:" + stateKey
}
