package cache_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/iden3/go-iden3-verifier/cache"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache_SetGet(t *testing.T) {
	tests := []struct {
		name    string
		ttl     []time.Duration
		wait    time.Duration
		present bool
	}{
		{name: "default ttl", present: true},
		{name: "custom ttl alive", ttl: []time.Duration{cache.WithTTL(time.Minute)}, present: true},
		{name: "custom ttl expired", ttl: []time.Duration{cache.WithTTL(50 * time.Millisecond)}, wait: 150 * time.Millisecond},
		{name: "non positive ttl falls back to default", ttl: []time.Duration{0}, wait: 50 * time.Millisecond, present: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cache.NewInMemoryCache[entry](10, 10*time.Second)
			c.Set("k", entry{State: "42", Latest: true}, tt.ttl...)
			time.Sleep(tt.wait)

			v, ok := c.Get("k")
			require.Equal(t, tt.present, ok)
			if tt.present {
				require.Equal(t, entry{State: "42", Latest: true}, v)
			}
		})
	}
}

func TestInMemoryCache_DeleteAndClear(t *testing.T) {
	c := cache.NewInMemoryCache[string](10, 10*time.Second)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")
	c.Delete("a")

	_, ok := c.Get("a")
	require.False(t, ok, "expected 'a' to be deleted")
	require.Equal(t, 2, c.Len())

	c.Clear()
	require.Equal(t, 0, c.Len(), "expected cache to be empty after Clear")
	_, ok = c.Get("b")
	require.False(t, ok)
}

func TestInMemoryCache_Overwrite(t *testing.T) {
	c := cache.NewInMemoryCache[string](10, 5*time.Second)

	c.Set("key", "initial")
	c.Set("key", "updated")

	val, ok := c.Get("key")
	require.True(t, ok)
	require.Equal(t, "updated", val)
}

func TestInMemoryCache_ExpiredEntriesAreDropped(t *testing.T) {
	c := cache.NewInMemoryCache[string](10, 100*time.Millisecond)

	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "value", cache.WithTTL(50*time.Millisecond))
	}
	time.Sleep(200 * time.Millisecond)

	for i := 0; i < 20; i++ {
		_, ok := c.Get(fmt.Sprintf("key-%d", i))
		require.False(t, ok)
	}
	require.LessOrEqual(t, c.Len(), 10, "expected cache to have <= 10 active items")
}
