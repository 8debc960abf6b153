package messaging

import (
	"context"

	"github.com/ghuser/inventory/pkg/logger"
	domainevents "github.com/ghuser/inventory/services/inventory/domain/events"
)

// RelayedEmitter is used when the repository stages the message in the write
// transaction. Delivery belongs to the bus Forwarder, so Publish only records it.
type RelayedEmitter struct {
	log logger.Logger
}

// NewRelayedEmitter returns the emitter for outbox mode.
func NewRelayedEmitter(log logger.Logger) *RelayedEmitter {
	return &RelayedEmitter{log: log}
}

func (e *RelayedEmitter) Publish(ctx context.Context, env domainevents.Envelope) error {
	e.log.DebugContext(ctx, "inventory change staged for forwarder",
		"event_id", env.EventID,
		"product_id", env.Event.ProductID,
		"revision", env.Revision,
	)
	return nil
}
