// Package subscribers holds the worker's handlers for inventory topics.
package subscribers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	pkgcache "github.com/ghuser/inventory/pkg/cache"
	"github.com/ghuser/inventory/pkg/logger"
	"github.com/ghuser/inventory/services/inventory/infrastructure/messaging"
)

// RevisionCache stores a read model only when it is newer than what is cached.
type RevisionCache interface {
	SetIfNewer(ctx context.Context, item *pkgcache.CachedInventory) (bool, error)
}

// CacheWarmer keeps the Redis read model in step with inventory.updated.
// Events may arrive late or more than once; the revision guard in the cache
// makes both harmless.
type CacheWarmer struct {
	cache RevisionCache
	log   logger.Logger
}

// NewCacheWarmer returns a handler writing to cache.
func NewCacheWarmer(cache RevisionCache, log logger.Logger) *CacheWarmer {
	return &CacheWarmer{cache: cache, log: log.With("component", "cache_warmer")}
}

// Handle is an events.Handler. Malformed messages are logged and acked since
// retrying cannot fix them; cache errors are returned so the bus retries.
func (w *CacheWarmer) Handle(ctx context.Context, msg *message.Message) error {
	env, err := messaging.ParseMessage(msg)
	if err != nil {
		w.log.ErrorContext(ctx, "dropping malformed inventory.updated message", "error", err)
		return nil
	}

	written, err := w.cache.SetIfNewer(ctx, &pkgcache.CachedInventory{
		ProductID:   env.Event.ProductID,
		StockRemain: env.Event.StockRemain,
		Revision:    env.Revision,
		UpdatedAt:   env.OccurredAt,
	})
	if err != nil {
		return err
	}

	if !written {
		w.log.DebugContext(ctx, "stale inventory event ignored",
			"product_id", env.Event.ProductID, "revision", env.Revision)
		return nil
	}
	w.log.InfoContext(ctx, "cache warmed",
		"product_id", env.Event.ProductID,
		"stock_remain", env.Event.StockRemain,
		"revision", env.Revision,
	)
	return nil
}
