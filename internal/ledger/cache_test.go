package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *OnHandCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewOnHandCache(client, time.Minute)
}

func TestOnHandCacheHitsAfterFirstLoad(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (float64, error) {
		calls++
		return 42.5, nil
	}

	for i := 0; i < 3; i++ {
		total, err := cache.Fetch(ctx, "comp-1", "default", loader)
		require.NoError(t, err)
		require.InDelta(t, 42.5, total, 1e-9)
	}
	require.Equal(t, 1, calls)
}

func TestOnHandCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	value := 10.0
	loader := func(context.Context) (float64, error) { return value, nil }

	total, err := cache.Fetch(ctx, "comp-1", "default", loader)
	require.NoError(t, err)
	require.InDelta(t, 10.0, total, 1e-9)

	value = 25.0
	cache.Bump(ctx)

	total, err = cache.Fetch(ctx, "comp-1", "default", loader)
	require.NoError(t, err)
	require.InDelta(t, 25.0, total, 1e-9)
}

func TestOnHandCacheNilClientPassesThrough(t *testing.T) {
	var cache *OnHandCache
	ctx := context.Background()

	total, err := cache.Fetch(ctx, "comp-1", "default", func(context.Context) (float64, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.InDelta(t, 7.0, total, 1e-9)

	cache.Bump(ctx) // must not panic

	_, err = cache.Fetch(ctx, "comp-1", "default", func(context.Context) (float64, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)
}
