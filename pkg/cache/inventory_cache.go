package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// InventoryCacheTTL is the time-to-live for cached inventory records.
	InventoryCacheTTL = 24 * time.Hour

	inventoryKeyPrefix = "inventory"
)

// CachedInventory is the read model stored in Redis as a hash.
type CachedInventory struct {
	ProductID   string
	StockRemain int64
	Revision    int64
	UpdatedAt   time.Time
}

// setIfNewer writes the hash only when the incoming revision is strictly
// greater than the stored one, so late or duplicated events cannot roll the
// read model back.
//
// KEYS[1] = key; ARGV = product_id, revision, stock_remain, updated_at, ttl seconds.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'revision')
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'product_id', ARGV[1], 'revision', ARGV[2], 'stock_remain', ARGV[3], 'updated_at', ARGV[4])
redis.call('EXPIRE', KEYS[1], ARGV[5])
return 1
`)

// InventoryCache reads and writes inventory records in Redis.
// Key format: "inventory:{productID}"
type InventoryCache struct {
	client *RedisClient
	ttl    time.Duration
}

// NewInventoryCache creates an InventoryCache backed by the given RedisClient.
func NewInventoryCache(r *RedisClient) *InventoryCache {
	return &InventoryCache{client: r, ttl: InventoryCacheTTL}
}

// Get returns the cached record. Returns redis.Nil when the key does not exist.
func (c *InventoryCache) Get(ctx context.Context, productID string) (*CachedInventory, error) {
	vals, err := c.client.Client().HGetAll(ctx, inventoryKey(productID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if len(vals) == 0 {
		return nil, redis.Nil
	}
	return parseInventoryHash(vals)
}

// SetIfNewer stores item unless the cache already holds the same or a newer
// revision. Reports whether the write happened.
func (c *InventoryCache) SetIfNewer(ctx context.Context, item *CachedInventory) (bool, error) {
	n, err := setIfNewer.Run(ctx, c.client.Client(),
		[]string{inventoryKey(item.ProductID)},
		item.ProductID,
		item.Revision,
		item.StockRemain,
		item.UpdatedAt.UTC().Format(time.RFC3339Nano),
		int64(c.ttl/time.Second),
	).Int()
	if err != nil {
		return false, fmt.Errorf("cache set: %w", err)
	}
	return n == 1, nil
}

// Delete removes a cached record.
func (c *InventoryCache) Delete(ctx context.Context, productID string) error {
	if err := c.client.Client().Del(ctx, inventoryKey(productID)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func inventoryKey(productID string) string {
	return inventoryKeyPrefix + ":" + productID
}

func parseInventoryHash(vals map[string]string) (*CachedInventory, error) {
	stock, err := strconv.ParseInt(vals["stock_remain"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cache parse stock_remain: %w", err)
	}
	rev, err := strconv.ParseInt(vals["revision"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cache parse revision: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, vals["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("cache parse updated_at: %w", err)
	}
	return &CachedInventory{
		ProductID:   vals["product_id"],
		StockRemain: stock,
		Revision:    rev,
		UpdatedAt:   updatedAt,
	}, nil
}
