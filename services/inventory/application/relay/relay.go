// Package relay redelivers inventory notifications that were parked after a
// failed inline publish.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/ghuser/inventory/pkg/logger"
	"github.com/ghuser/inventory/pkg/metrics"
	"github.com/ghuser/inventory/services/inventory/domain"
	"github.com/ghuser/inventory/services/inventory/domain/events"
	"github.com/ghuser/inventory/services/inventory/domain/models"
	"github.com/ghuser/inventory/services/inventory/domain/repositories"
)

const maxBackoff = 5 * time.Minute

// Config tunes the relay loop.
type Config struct {
	Interval       time.Duration
	BatchSize      int
	PublishTimeout time.Duration
}

// Stats summarizes one relay pass.
type Stats struct {
	Delivered  int
	Superseded int
	Failed     int
}

// Relay polls parked notifications and republishes them.
//
// A parked notification whose product has since been written again is
// superseded: the newer write carries the absolute stock value and has its
// own notification, so the stale one is dropped rather than delivered out of
// order.
type Relay struct {
	pending   repositories.PendingEmissionRepository
	inventory repositories.InventoryLocker
	emitter   events.Emitter
	cfg       Config
	log       logger.Logger
	now       func() time.Time
}

// New returns a Relay.
func New(
	pending repositories.PendingEmissionRepository,
	inventory repositories.InventoryLocker,
	emitter events.Emitter,
	cfg Config,
	log logger.Logger,
) *Relay {
	return &Relay{
		pending:   pending,
		inventory: inventory,
		emitter:   emitter,
		cfg:       cfg,
		log:       log.With("component", "emission_relay"),
		now:       time.Now,
	}
}

// Run polls every cfg.Interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.InfoContext(ctx, "emission relay started", "interval", r.cfg.Interval, "batch_size", r.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("emission relay shutting down")
			return
		case <-ticker.C:
			stats, err := r.RunOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.log.ErrorContext(ctx, "emission relay pass failed", "error", err)
				continue
			}
			if stats != (Stats{}) {
				r.log.InfoContext(ctx, "emission relay pass",
					"delivered", stats.Delivered,
					"superseded", stats.Superseded,
					"failed", stats.Failed,
				)
			}
		}
	}
}

// RunOnce processes one batch of due notifications in commit order.
func (r *Relay) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	due, err := r.pending.Due(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	// A product whose older notification failed in this pass must not get a
	// newer one delivered ahead of it.
	blocked := map[string]bool{}

	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		productID := p.Envelope.Event.ProductID
		if blocked[productID] {
			continue
		}

		superseded, publishErr, err := r.deliver(ctx, p.Envelope)
		if err != nil {
			r.log.WarnContext(ctx, "emission relay: could not lock product",
				"event_id", p.Envelope.EventID, "error", err)
			blocked[productID] = true
			continue
		}
		if superseded {
			if err := r.pending.Delete(ctx, p.Envelope.EventID); err != nil {
				return stats, err
			}
			stats.Superseded++
			metrics.EmissionsRelayed.WithLabelValues(metrics.RelaySuperseded).Inc()
			continue
		}

		if err := publishErr; err != nil {
			attempts := p.Attempts + 1
			next := r.now().Add(Backoff(r.cfg.Interval, attempts))
			if rerr := r.pending.Reschedule(ctx, p.Envelope.EventID, attempts, next, err); rerr != nil {
				return stats, rerr
			}
			r.log.WarnContext(ctx, "emission relay: publish failed",
				"event_id", p.Envelope.EventID,
				"product_id", productID,
				"attempts", attempts,
				"next_attempt_at", next,
				"error", err,
			)
			blocked[productID] = true
			stats.Failed++
			metrics.EmissionsRelayed.WithLabelValues(metrics.RelayFailed).Inc()
			continue
		}

		if err := r.pending.Delete(ctx, p.Envelope.EventID); err != nil {
			return stats, err
		}
		stats.Delivered++
		metrics.EmissionsRelayed.WithLabelValues(metrics.RelayDelivered).Inc()
	}
	return stats, nil
}

// deliver compares revisions and publishes while holding the product's row
// lock. UpdateStock waits on the same lock, so no newer write can commit and
// emit between the check and the publish.
func (r *Relay) deliver(ctx context.Context, env events.Envelope) (superseded bool, publishErr error, err error) {
	err = r.inventory.WithRowLock(ctx, models.ProductID(env.Event.ProductID),
		func(ctx context.Context, current *models.Inventory) error {
			if current.Revision > env.Revision {
				superseded = true
				return nil
			}
			publishErr = r.publish(ctx, env)
			return nil
		})
	if errors.Is(err, domain.ErrInventoryNotFound) {
		return true, nil, nil
	}
	return superseded, publishErr, err
}

func (r *Relay) publish(ctx context.Context, env events.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()
	return r.emitter.Publish(ctx, env)
}

// Backoff returns the delay before attempt n+1: base doubled per attempt,
// capped at five minutes.
func Backoff(base time.Duration, attempts int) time.Duration {
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return min(d, maxBackoff)
}
