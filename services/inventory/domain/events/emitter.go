package events

import "context"

// Emitter delivers change notifications to the outbound channel.
//
// Publish makes a single delivery attempt bounded by ctx and reports whether
// the transport acknowledged the message. Retrying is not the emitter's
// concern: callers decide whether to park a failed envelope for later relay.
type Emitter interface {
	Publish(ctx context.Context, env Envelope) error
}
