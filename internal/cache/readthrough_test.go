package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestReadThrough_ExpiresByClock(t *testing.T) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	loads := 0
	c := NewReadThrough(time.Minute, clk, func(ctx context.Context, key string) (int, error) {
		loads++
		return loads, nil
	})
	ctx := context.Background()

	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	clk.Advance(59 * time.Second)
	v, _ = c.Get(ctx, "a")
	require.Equal(t, 1, v)
	require.Equal(t, 1, loads)

	clk.Advance(time.Second)
	v, _ = c.Get(ctx, "a")
	require.Equal(t, 2, v)
	require.Equal(t, 2, loads)
}

func TestReadThrough_ErrorsNotCached(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	fail := true
	c := NewReadThrough(time.Hour, clk, func(ctx context.Context, key int) (string, error) {
		if fail {
			return "", errors.New("db down")
		}
		return "ok", nil
	})

	_, err := c.Get(context.Background(), 1)
	require.Error(t, err)
	require.Equal(t, 0, c.Len())

	fail = false
	v, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 1, c.Len())
}

func TestReadThrough_Forget(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	loads := 0
	c := NewReadThrough(time.Hour, clk, func(ctx context.Context, key int) (int, error) {
		loads++
		return key * 10, nil
	})
	ctx := context.Background()

	_, _ = c.Get(ctx, 3)
	c.Forget(3)
	v, _ := c.Get(ctx, 3)
	require.Equal(t, 30, v)
	require.Equal(t, 2, loads)
}

func TestReadThrough_ZeroTTLDisablesCaching(t *testing.T) {
	loads := 0
	c := NewReadThrough(0, nil, func(ctx context.Context, key int) (int, error) {
		loads++
		return 0, nil
	})
	_, _ = c.Get(context.Background(), 1)
	_, _ = c.Get(context.Background(), 1)
	require.Equal(t, 2, loads)
}
