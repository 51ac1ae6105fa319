package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

func newTestCache(t *testing.T) (*ledger.BalanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ledger.NewBalanceCache(client, 30*time.Second), mr
}

func TestBalanceCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1, nil)
	require.False(t, ok)

	cache.Set(ctx, 1, nil, dec("42.5"))
	balance, ok := cache.Get(ctx, 1, nil)
	require.True(t, ok)
	require.True(t, balance.Equal(dec("42.5")))
}

func TestBalanceCacheScopesKeysByWarehouse(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	warehouse := int64(3)
	cache.Set(ctx, 1, &warehouse, dec("10"))
	cache.Set(ctx, 1, nil, dec("25"))

	scoped, ok := cache.Get(ctx, 1, &warehouse)
	require.True(t, ok)
	require.True(t, scoped.Equal(dec("10")))

	global, ok := cache.Get(ctx, 1, nil)
	require.True(t, ok)
	require.True(t, global.Equal(dec("25")))

	other := int64(4)
	_, ok = cache.Get(ctx, 1, &other)
	require.False(t, ok)
}

func TestBalanceCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 1, nil, dec("5"))
	mr.FastForward(31 * time.Second)

	_, ok := cache.Get(ctx, 1, nil)
	require.False(t, ok)
}

func TestBalanceCacheNilClientIsNoop(t *testing.T) {
	cache := ledger.NewBalanceCache(nil, time.Second)
	ctx := context.Background()

	cache.Set(ctx, 1, nil, dec("5"))
	_, ok := cache.Get(ctx, 1, nil)
	require.False(t, ok)
}
