package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pkgcache "github.com/ghuser/inventory/pkg/cache"
	"github.com/ghuser/inventory/pkg/keylock"
	"github.com/ghuser/inventory/pkg/logger"
	"github.com/ghuser/inventory/pkg/metrics"
	"github.com/ghuser/inventory/pkg/telemetry"
	"github.com/ghuser/inventory/services/inventory/domain"
	"github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/domain/models"
	"github.com/ghuser/inventory/services/inventory/domain/repositories"
	domainsvcs "github.com/ghuser/inventory/services/inventory/domain/services"
)

// InventoryCache is the read-model cache the service warms and reads.
type InventoryCache interface {
	Get(ctx context.Context, productID string) (*pkgcache.CachedInventory, error)
	SetIfNewer(ctx context.Context, item *pkgcache.CachedInventory) (bool, error)
}

// Options tunes the mutation policy.
type Options struct {
	// StoreTimeout bounds the key-lock wait plus the store transaction.
	StoreTimeout time.Duration
	// PublishTimeout bounds the emission attempt and, separately, parking.
	PublishTimeout time.Duration
	// Transport labels publish metrics ("sql", "kafka", "outbox").
	Transport string
	Policy    domainsvcs.StockPolicy
}

// UpdateResult is the outcome of a committed stock write.
type UpdateResult struct {
	Record   models.Inventory
	Event    events.InventoryChanged
	Envelope events.Envelope
	// PublishErr is non-nil when the write committed but the notification was
	// not delivered. It wraps domain.ErrPublishFailed.
	PublishErr error
}

// Degraded reports a committed write whose notification was not delivered.
func (r *UpdateResult) Degraded() bool {
	return r != nil && r.PublishErr != nil
}

// InventoryService applies absolute stock overwrites and emits one change
// event per committed write.
//
// Writes to the same product are serialized by a per-key lock held from
// before the row read until after the emission attempt, so events for a
// product leave in commit order. Different products never contend.
type InventoryService struct {
	repo    repositories.InventoryRepository
	emitter events.Emitter
	pending repositories.PendingEmissionRepository
	cache   InventoryCache
	locks   *keylock.Locker
	opts    Options
	log     logger.Logger
	tracer  trace.Tracer
}

// NewInventoryService wires the mutator. pending and cache may be nil: without
// pending, failed notifications are only logged and counted; without cache,
// reads always hit the store.
func NewInventoryService(
	repo repositories.InventoryRepository,
	emitter events.Emitter,
	pending repositories.PendingEmissionRepository,
	cache InventoryCache,
	opts Options,
	log logger.Logger,
) *InventoryService {
	return &InventoryService{
		repo:    repo,
		emitter: emitter,
		pending: pending,
		cache:   cache,
		locks:   keylock.New(),
		opts:    opts,
		log:     log.With("component", "inventory_service"),
		tracer:  telemetry.Tracer(),
	}
}

// Update overwrites the stock of an existing product with newStock and emits
// InventoryChanged once the write has committed.
//
// Errors: ErrInvalidProductID / ErrNegativeStock for rejected input,
// ErrInventoryNotFound when no record exists, ErrPersistenceFailure when the
// write did not commit. A committed write always returns a non-nil result;
// check Degraded for an undelivered notification.
func (s *InventoryService) Update(ctx context.Context, productID string, newStock int64) (*UpdateResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "inventory.update", trace.WithAttributes(
		attribute.String("inventory.product_id", productID),
		attribute.Int64("inventory.stock_remain", newStock),
	))
	defer span.End()

	res, err := s.update(ctx, productID, newStock)

	outcome := outcomeOf(res, err)
	metrics.InventoryUpdates.WithLabelValues(outcome).Inc()
	metrics.InventoryUpdateDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("inventory.outcome", outcome))

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	case res.Degraded():
		span.RecordError(res.PublishErr)
		span.SetAttributes(attribute.Int64("inventory.revision", res.Record.Revision))
		span.SetStatus(codes.Ok, "stock updated, notification pending")
	default:
		span.SetAttributes(attribute.Int64("inventory.revision", res.Record.Revision))
		span.SetStatus(codes.Ok, "stock updated")
	}
	return res, err
}

func (s *InventoryService) update(ctx context.Context, productID string, newStock int64) (*UpdateResult, error) {
	id, err := models.NewProductID(productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidProductID, err)
	}
	if err := s.opts.Policy.Validate(newStock); err != nil {
		return nil, err
	}

	storeCtx, cancelStore := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancelStore()

	unlock, err := s.locks.Lock(storeCtx, id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: wait for product lock: %w", domain.ErrPersistenceFailure, err)
	}
	defer unlock()

	inv, err := s.repo.UpdateStock(storeCtx, id, newStock)
	if err != nil {
		if errors.Is(err, domain.ErrInventoryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}

	evt := events.NewInventoryChanged(*inv)
	res := &UpdateResult{
		Record:   *inv,
		Event:    evt,
		Envelope: events.NewEnvelope(evt, inv.Revision, inv.UpdatedAt),
	}

	// The write is durable from here on. Caller cancellation must not skip
	// the emission attempt, so it runs on a detached, separately bounded ctx.
	emitCtx, cancelEmit := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancelEmit()

	if err := s.emitter.Publish(emitCtx, res.Envelope); err != nil {
		res.PublishErr = fmt.Errorf("%w: %w", domain.ErrPublishFailed, err)
		s.onPublishFailure(context.WithoutCancel(ctx), res.Envelope, err)
	} else {
		metrics.EventsPublished.WithLabelValues(s.opts.Transport).Inc()
	}

	s.warmCache(res.Record)

	s.log.InfoContext(ctx, "stock updated",
		"product_id", id.String(),
		"stock_remain", inv.StockRemain,
		"revision", inv.Revision,
		"event_id", res.Envelope.EventID,
		"event_published", res.PublishErr == nil,
	)
	return res, nil
}

// onPublishFailure reports an undelivered notification and hands it to the
// relay. It never changes the outcome of the committed write.
func (s *InventoryService) onPublishFailure(ctx context.Context, env events.Envelope, cause error) {
	metrics.PublishFailures.WithLabelValues(s.opts.Transport).Inc()
	s.log.WarnContext(ctx, "inventory change notification failed",
		"product_id", env.Event.ProductID,
		"revision", env.Revision,
		"event_id", env.EventID,
		"transport", s.opts.Transport,
		"error", cause,
	)
	telemetry.CaptureError(ctx, fmt.Errorf("%w: %w", domain.ErrPublishFailed, cause), map[string]string{
		"product_id": env.Event.ProductID,
		"event_id":   env.EventID.String(),
	})

	if s.pending == nil {
		return
	}

	parkCtx, cancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
	defer cancel()
	if err := s.pending.Park(parkCtx, env, cause); err != nil {
		metrics.ParkFailures.Inc()
		s.log.ErrorContext(ctx, "failed to park undelivered notification; reconciliation required",
			"product_id", env.Event.ProductID,
			"revision", env.Revision,
			"event_id", env.EventID,
			"error", err,
		)
		return
	}
	metrics.EmissionsParked.Inc()
}

func (s *InventoryService) warmCache(inv models.Inventory) {
	if s.cache == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.PublishTimeout)
		defer cancel()
		if _, err := s.cache.SetIfNewer(ctx, toCached(inv)); err != nil {
			s.log.WarnContext(ctx, "cache warm failed after update",
				"product_id", inv.ProductID.String(), "error", err)
		}
	}()
}

// Get retrieves a record using a read-through cache:
//  1. Check Redis first.
//  2. On miss (or cache error), query the store.
//  3. Asynchronously warm the cache with the store result.
func (s *InventoryService) Get(ctx context.Context, productID string) (*models.Inventory, error) {
	id, err := models.NewProductID(productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidProductID, err)
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id.String())
		switch {
		case err == nil:
			return fromCached(cached), nil
		case !errors.Is(err, redis.Nil):
			s.log.WarnContext(ctx, "cache read failed, falling back to store",
				"product_id", id.String(), "error", err)
		}
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	inv, err := s.repo.GetByProductID(storeCtx, id)
	if err != nil {
		if errors.Is(err, domain.ErrInventoryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}

	s.warmCache(*inv)
	return inv, nil
}

func outcomeOf(res *UpdateResult, err error) string {
	switch {
	case err == nil && res.Degraded():
		return metrics.OutcomeDegraded
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrInventoryNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrPersistenceFailure):
		return metrics.OutcomePersistenceFailure
	default:
		return metrics.OutcomeInvalid
	}
}

func toCached(inv models.Inventory) *pkgcache.CachedInventory {
	return &pkgcache.CachedInventory{
		ProductID:   inv.ProductID.String(),
		StockRemain: inv.StockRemain,
		Revision:    inv.Revision,
		UpdatedAt:   inv.UpdatedAt,
	}
}

func fromCached(c *pkgcache.CachedInventory) *models.Inventory {
	return &models.Inventory{
		ProductID:   models.ProductID(c.ProductID),
		StockRemain: c.StockRemain,
		Revision:    c.Revision,
		UpdatedAt:   c.UpdatedAt,
	}
}
