package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/config"
)

func skipIfNoRedis(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("GEO_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := NewClient(config.RedisConfig{Addr: addr, DB: 15, PoolSize: 2})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetSetFlush(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	prefix := "geo-test:" + time.Now().Format("150405.000000") + ":"

	_, err := c.Get(ctx, prefix+"missing")
	assert.True(t, IsNilError(err))

	require.NoError(t, c.Set(ctx, prefix+"a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, prefix+"b", []byte("2"), time.Minute))
	v, err := c.Get(ctx, prefix+"a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	n, err := c.FlushByPattern(ctx, prefix+"*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, err = c.Get(ctx, prefix+"b")
	assert.True(t, IsNilError(err))
}
