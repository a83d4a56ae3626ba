package redis

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/notebook-server/internal/repository"
)

// Set NOTEBOOK_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a real server.
func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("NOTEBOOK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NOTEBOOK_TEST_REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestCache_RoundTrip(t *testing.T) {
	client := newTestClient(t)
	c := NewCache(client, "test:"+t.Name()+":")
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}
