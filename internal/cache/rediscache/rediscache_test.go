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

	_, ok, err := c.Get(ctx, "tracking:5859187246:current")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "tracking:5859187246:current", []byte(`{"tracking_number":"5859187246"}`), time.Hour))

	b, ok, err := c.Get(ctx, "tracking:5859187246:current")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, string(b), "5859187246")

	require.NoError(t, c.Delete(ctx, "tracking:5859187246:current"))
	_, ok, err = c.Get(ctx, "tracking:5859187246:current")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:dhl:202601011200", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:dhl:202601011200", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:dhl:202601011200", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}
