package cache

import (
	"time"

	"github.com/karlseguin/ccache/v3"
)

// ICache is a generic key/value cache with per-entry expiration.
type ICache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T, ttl ...time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

// WithTTL overrides the default TTL of a single Set call.
func WithTTL(ttl time.Duration) time.Duration {
	return ttl
}

func pickTTL(def time.Duration, ttl []time.Duration) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return ttl[0]
	}
	return def
}

type memoryCache[T any] struct {
	items      *ccache.Cache[T]
	defaultTTL time.Duration
}

// NewInMemoryCache creates a process local cache bounded by size entries.
func NewInMemoryCache[T any](size int64, defaultTTL time.Duration) ICache[T] {
	return &memoryCache[T]{
		items:      ccache.New(ccache.Configure[T]().MaxSize(size)),
		defaultTTL: defaultTTL,
	}
}

func (c *memoryCache[T]) Get(key string) (T, bool) {
	item := c.items.Get(key)
	if item == nil || item.Expired() {
		var zero T
		return zero, false
	}
	return item.Value(), true
}

func (c *memoryCache[T]) Set(key string, value T, ttl ...time.Duration) {
	c.items.Set(key, value, pickTTL(c.defaultTTL, ttl))
}

func (c *memoryCache[T]) Delete(key string) {
	c.items.Delete(key)
}

func (c *memoryCache[T]) Clear() {
	c.items.Clear()
}

func (c *memoryCache[T]) Len() int {
	return c.items.ItemCount()
}
