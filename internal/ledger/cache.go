package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// BalanceCache keeps derived balances in Redis for a short TTL. The ledger sum
// stays authoritative; a stale read here can only ever be seconds old and
// write paths never consult it.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache builds a BalanceCache. A 30s TTL is a sensible default for
// dashboard-style reads.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceCacheKey(productID int64, warehouseID *int64) string {
	if warehouseID == nil {
		return fmt.Sprintf("balance:%d:all", productID)
	}
	return fmt.Sprintf("balance:%d:%d", productID, *warehouseID)
}

// Get returns the cached balance, or false on miss or any Redis failure.
func (c *BalanceCache) Get(ctx context.Context, productID int64, warehouseID *int64) (decimal.Decimal, bool) {
	if c == nil || c.client == nil {
		return decimal.Zero, false
	}
	raw, err := c.client.Get(ctx, balanceCacheKey(productID, warehouseID)).Result()
	if err != nil {
		return decimal.Zero, false
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return balance, true
}

// Set stores the balance. Failures are swallowed; the cache is best effort.
func (c *BalanceCache) Set(ctx context.Context, productID int64, warehouseID *int64, balance decimal.Decimal) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, balanceCacheKey(productID, warehouseID), balance.String(), c.ttl).Err()
}
