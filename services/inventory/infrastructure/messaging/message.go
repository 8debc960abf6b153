package messaging

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/inventory/pkg/events"
	domainevents "github.com/ghuser/inventory/services/inventory/domain/events"
)

// NewMessage converts env into a watermill message. The message UUID is the
// event ID so redeliveries of the same write are recognizable downstream.
// Trace context from ctx is copied into the metadata.
func NewMessage(ctx context.Context, env domainevents.Envelope) (*message.Message, error) {
	payload, err := env.Payload()
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(env.EventID.String(), payload)
	for k, v := range env.Metadata() {
		msg.Metadata.Set(k, v)
	}
	events.InjectTrace(ctx, msg)
	return msg, nil
}

// ParseMessage rebuilds the envelope carried by msg.
func ParseMessage(msg *message.Message) (domainevents.Envelope, error) {
	env, err := domainevents.ParseEnvelope(msg.Payload, msg.Metadata)
	if err != nil {
		return domainevents.Envelope{}, fmt.Errorf("message %s: %w", msg.UUID, err)
	}
	return env, nil
}
