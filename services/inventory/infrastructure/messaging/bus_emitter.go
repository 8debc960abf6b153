// Package messaging holds the transports that deliver InventoryChanged.
package messaging

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	domainevents "github.com/ghuser/inventory/services/inventory/domain/events"
)

// Publisher is the subset of *events.EventBus the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, msgs ...*message.Message) error
}

// BusEmitter publishes InventoryChanged on the SQL event bus.
type BusEmitter struct {
	bus Publisher
}

// NewBusEmitter returns an emitter publishing to bus.
func NewBusEmitter(bus Publisher) *BusEmitter {
	return &BusEmitter{bus: bus}
}

// Publish sends env to the inventory.updated topic. It returns when the row is
// written or ctx is done.
func (e *BusEmitter) Publish(ctx context.Context, env domainevents.Envelope) error {
	msg, err := NewMessage(ctx, env)
	if err != nil {
		return err
	}
	if err := e.bus.Publish(ctx, domainevents.TopicInventoryUpdated, msg); err != nil {
		return fmt.Errorf("bus emitter: %w", err)
	}
	return nil
}
