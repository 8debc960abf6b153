package subscribers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	pkgcache "github.com/ghuser/inventory/pkg/cache"
	"github.com/ghuser/inventory/pkg/logger"
	"github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/infrastructure/messaging"
)

type stubCache struct {
	items map[string]*pkgcache.CachedInventory
	err   error
}

func (c *stubCache) SetIfNewer(_ context.Context, item *pkgcache.CachedInventory) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if cur, ok := c.items[item.ProductID]; ok && cur.Revision >= item.Revision {
		return false, nil
	}
	c.items[item.ProductID] = item
	return true, nil
}

func newMsg(t *testing.T, stock, revision int64) *message.Message {
	t.Helper()
	env := events.NewEnvelope(events.InventoryChanged{ProductID: "12345", StockRemain: stock}, revision, time.Now())
	msg, err := messaging.NewMessage(context.Background(), env)
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	return msg
}

func TestCacheWarmer_IgnoresStaleEvents(t *testing.T) {
	c := &stubCache{items: map[string]*pkgcache.CachedInventory{}}
	w := NewCacheWarmer(c, logger.Discard())

	for _, msg := range []*message.Message{newMsg(t, 30, 3), newMsg(t, 40, 2)} {
		if err := w.Handle(context.Background(), msg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	got := c.items["12345"]
	if got.StockRemain != 30 || got.Revision != 3 {
		t.Fatalf("late event overwrote newer state: %+v", got)
	}
}

func TestCacheWarmer_MalformedMessageIsAcked(t *testing.T) {
	w := NewCacheWarmer(&stubCache{items: map[string]*pkgcache.CachedInventory{}}, logger.Discard())
	msg := message.NewMessage("x", []byte("not json"))
	msg.Metadata.Set(events.MetaType, events.TypeInventoryUpdated)

	if err := w.Handle(context.Background(), msg); err != nil {
		t.Fatalf("malformed messages must not be retried, got %v", err)
	}
}

func TestCacheWarmer_CacheErrorIsRetried(t *testing.T) {
	cause := errors.New("redis down")
	w := NewCacheWarmer(&stubCache{err: cause}, logger.Discard())

	if err := w.Handle(context.Background(), newMsg(t, 1, 2)); !errors.Is(err, cause) {
		t.Fatalf("expected cache error, got %v", err)
	}
}
