package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := NewRedisCache(mr.Addr(), "", 0, time.Hour)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestAvatarCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.GetAvatar(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetAvatar(ctx, 1, "https://cdn.example/1.png"))

	url, ok, err := c.GetAvatar(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example/1.png", url)
	assert.Equal(t, time.Hour, mr.TTL("avatar:1"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.GetAvatar(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAvatarCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetAvatar(ctx, 2, "u"))
	require.NoError(t, c.InvalidateAvatar(ctx, 2))

	_, ok, err := c.GetAvatar(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
