package cache

import (
	"context"
	"time"
)

// LayeredCache reads through a local tier into a shared tier. Writes land in
// both; the local copy is capped at L1TTL so instances converge on the
// shared tier after at most that long.
type LayeredCache struct {
	l1    Service
	l2    Service
	l1TTL time.Duration
}

// NewLayeredCache composes a local tier over a shared tier.
func NewLayeredCache(local, shared Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{L1TTL: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{l1: local, l2: shared, l1TTL: cfg.L1TTL}
}

func (c *LayeredCache) capTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.l1TTL {
		return c.l1TTL
	}
	return ttl
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	// local copy is best effort
	_ = c.l1.Set(ctx, key, value, c.capTTL(ttl))
	return nil
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	var raw string
	if err := c.l2.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = c.l1.Set(ctx, key, raw, c.l1TTL)
	return decodeValue(raw, dest)
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	return c.l2.Delete(ctx, keys...)
}

func (c *LayeredCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, err := c.l1.Exists(ctx, key); err == nil && ok {
		return true, nil
	}
	return c.l2.Exists(ctx, key)
}

// TryLock delegates to the shared tier so the lock holds across instances.
func (c *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.l2.TryLock(ctx, key, ttl)
}

func (c *LayeredCache) Unlock(ctx context.Context, key string) error {
	return c.l2.Unlock(ctx, key)
}
