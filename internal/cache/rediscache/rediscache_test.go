package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "waybill:1:current", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "waybill:1:current")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Delete(ctx, "waybill:1:current"))
	_, ok, err = c.Get(ctx, "waybill:1:current")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_GetError(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	mr.Close()

	_, ok, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	require.False(t, ok)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}

func TestRateLimiter_OnceGuardAndRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiterWithClient(NewClient(mr.Addr()))
	ctx := context.Background()

	ok, _, err := rl.Allow(ctx, "plan:1:2024-01-01", 1, 24*time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, _ = rl.Allow(ctx, "plan:1:2024-01-01", 1, 24*time.Hour)
	require.False(t, ok)

	require.NoError(t, rl.Release(ctx, "plan:1:2024-01-01"))
	ok, _, _ = rl.Allow(ctx, "plan:1:2024-01-01", 1, 24*time.Hour)
	require.True(t, ok)
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	ctx := context.Background()

	_, _, _ = rl.Allow(ctx, "rl:w", 1, time.Minute)
	ok, _, _ := rl.Allow(ctx, "rl:w", 1, time.Minute)
	require.False(t, ok)

	mr.FastForward(61 * time.Second)
	ok, n, err := rl.Allow(ctx, "rl:w", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}
