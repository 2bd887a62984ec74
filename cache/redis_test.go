package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/iden3/go-iden3-verifier/cache"
	"github.com/stretchr/testify/require"
)

type entry struct {
	State  string `json:"state"`
	Latest bool   `json:"latest"`
}

// Requires a running redis on localhost:6379.
func TestRedisCache_Integration(t *testing.T) {
	c := cache.NewRedisCacheFromAddr[entry]("localhost:6379", "verifier-test:", time.Minute)
	defer c.Close()
	if err := c.Ping(context.Background()); err != nil {
		t.Skip("Skipping redis integration test: redis not available")
	}
	c.Clear()

	c.Set("a", entry{State: "1", Latest: true})
	c.Set("b", entry{State: "2"}, cache.WithTTL(100*time.Millisecond))

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, entry{State: "1", Latest: true}, v)
	require.Equal(t, 2, c.Len())

	time.Sleep(200 * time.Millisecond)
	_, ok = c.Get("b")
	require.False(t, ok, "expected 'b' to be expired")

	c.Delete("a")
	_, ok = c.Get("a")
	require.False(t, ok)

	c.Set("c", entry{State: "3"})
	c.Clear()
	require.Equal(t, 0, c.Len())
}

func TestRedisCache_Unreachable(t *testing.T) {
	c := cache.NewRedisCacheFromAddr[entry]("127.0.0.1:1", "verifier-test:", time.Minute)
	defer c.Close()

	c.Set("a", entry{State: "1"})
	_, ok := c.Get("a")
	require.False(t, ok, "backend failures are misses")
}
