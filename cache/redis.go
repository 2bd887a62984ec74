package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// RedisCache shares resolution results between verifier replicas. Values
// are stored as JSON under a common key prefix. Backend failures are
// treated as cache misses.
type RedisCache[T any] struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache[T any](client redis.UniversalClient, prefix string, defaultTTL time.Duration) *RedisCache[T] {
	return &RedisCache[T]{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

// NewRedisCacheFromAddr dials addr with default options.
func NewRedisCacheFromAddr[T any](addr, prefix string, defaultTTL time.Duration) *RedisCache[T] {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return NewRedisCache[T](client, prefix, defaultTTL)
}

// Ping checks the connection to the backend.
func (c *RedisCache[T]) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache[T]) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache[T]) Get(key string) (T, bool) {
	var zero T
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}

func (c *RedisCache[T]) Set(key string, value T, ttl ...time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	c.client.Set(ctx, c.key(key), raw, pickTTL(c.defaultTTL, ttl))
}

func (c *RedisCache[T]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	c.client.Del(ctx, c.key(key))
}

// Clear removes every key under the cache prefix.
func (c *RedisCache[T]) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}

// Len counts keys under the cache prefix.
func (c *RedisCache[T]) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}

// Close releases the underlying client.
func (c *RedisCache[T]) Close() error {
	return c.client.Close()
}
