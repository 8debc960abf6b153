// Package events provides the PostgreSQL-backed pub/sub EventBus used to carry
// inventory notifications, built on Watermill's SQL transport.
//
// Two publishing modes:
//   - direct: Publish inserts the message into the topic table immediately.
//   - forwarder (outbox): messages are written to an internal queue, usually
//     inside the caller's business transaction via NewTxPublisher, and a
//     Forwarder daemon moves them to their target topic after commit.
//
// Subscribers in the same ConsumerGroup (<service>-consumer) share the load;
// each message is handled by one instance. Handlers must be idempotent since
// delivery is at-least-once.
//
// OTel trace context is injected into message metadata on Publish and
// restored for the handler on Subscribe.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/inventory/pkg/config"
	"github.com/ghuser/inventory/pkg/logger"
)

const (
	maxRetries      = 3
	retryBaseDelay  = time.Second
	shutdownTimeout = 30 * time.Second
	errChanSize     = 100
	forwarderTopic  = "_forwarder_queue"

	defaultPublishSettle = 30 * time.Second
)

var (
	// ErrForwarderDisabled is returned by StartForwarder on a direct-mode bus.
	ErrForwarderDisabled = errors.New("events: forwarder mode not enabled")
	// ErrPublishOutcomeUnknown means an insert outlived both the caller's
	// deadline and the settle window; it may still land.
	ErrPublishOutcomeUnknown = errors.New("events: publish outcome unknown")
)

// Handler processes one message. Returning an error triggers a retry.
type Handler func(ctx context.Context, msg *message.Message) error

// EventBus publishes and subscribes to topics stored in PostgreSQL.
type EventBus struct {
	publisher    message.Publisher
	subscriber   *watermillsql.Subscriber
	fwd          *forwarder.Forwarder
	db           *sql.DB
	log          logger.Logger
	wlog         watermill.LoggerAdapter
	wg           sync.WaitGroup
	useForwarder bool
	// settle bounds how long Publish waits for an insert past the caller's
	// deadline. Zero means defaultPublishSettle.
	settle time.Duration
}

// NewEventBus opens its own pool on cfg.DatabaseURL and builds the Watermill
// publisher and subscriber. Schema tables are created on first use.
// When cfg.OutboxEnabled is set the bus runs in forwarder mode; call
// StartForwarder once to begin relaying.
func NewEventBus(cfg *config.Config, log logger.Logger) (*EventBus, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("events: open db: %w", err)
	}
	bus, err := NewEventBusFromDB(db, cfg.ServiceName+"-consumer", cfg.OutboxEnabled, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return bus, nil
}

// NewEventBusFromDB builds a bus on an existing pool. The caller keeps
// ownership of db until Close, which closes it.
func NewEventBusFromDB(db *sql.DB, consumerGroup string, useForwarder bool, log logger.Logger) (*EventBus, error) {
	wlog := NewLoggerAdapter(log)

	pub, err := newSQLPublisher(db, wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new publisher: %w", err)
	}

	var publisher message.Publisher = pub
	if useForwarder {
		publisher = forwarder.NewPublisher(pub, forwarder.PublisherConfig{ForwarderTopic: forwarderTopic})
	}

	sub, err := newSQLSubscriber(db, consumerGroup, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("events: new subscriber: %w", err)
	}

	return &EventBus{
		publisher:    publisher,
		subscriber:   sub,
		db:           db,
		log:          log,
		wlog:         wlog,
		useForwarder: useForwarder,
	}, nil
}

func newSQLPublisher(db *sql.DB, wlog watermill.LoggerAdapter) (*watermillsql.Publisher, error) {
	return watermillsql.NewPublisher(db, watermillsql.PublisherConfig{
		SchemaAdapter:        watermillsql.DefaultPostgreSQLSchema{},
		AutoInitializeSchema: true,
	}, wlog)
}

func newSQLSubscriber(db *sql.DB, consumerGroup string, wlog watermill.LoggerAdapter) (*watermillsql.Subscriber, error) {
	return watermillsql.NewSubscriber(db, watermillsql.SubscriberConfig{
		SchemaAdapter:    watermillsql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   watermillsql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
		ConsumerGroup:    consumerGroup,
	}, wlog)
}

// Outbox reports whether the bus runs in forwarder mode.
func (q *EventBus) Outbox() bool {
	return q.useForwarder
}

// StartForwarder starts the daemon that drains the forwarder queue into the
// target topics and blocks until it is running.
func (q *EventBus) StartForwarder(ctx context.Context) error {
	if !q.useForwarder {
		return ErrForwarderDisabled
	}
	if q.fwd != nil {
		return errors.New("events: forwarder already started")
	}

	fwdSub, err := newSQLSubscriber(q.db, "forwarder-consumer", q.wlog)
	if err != nil {
		return fmt.Errorf("events: new forwarder subscriber: %w", err)
	}
	targetPub, err := newSQLPublisher(q.db, q.wlog)
	if err != nil {
		_ = fwdSub.Close()
		return fmt.Errorf("events: new forwarder target publisher: %w", err)
	}

	fwd, err := forwarder.NewForwarder(fwdSub, targetPub, q.wlog, forwarder.Config{
		ForwarderTopic: forwarderTopic,
	})
	if err != nil {
		_ = targetPub.Close()
		_ = fwdSub.Close()
		return fmt.Errorf("events: create forwarder: %w", err)
	}
	q.fwd = fwd

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.log.InfoContext(ctx, "events: forwarder started")
		if err := fwd.Run(ctx); err != nil {
			q.log.ErrorContext(ctx, "events: forwarder stopped with error", "error", err)
			return
		}
		q.log.InfoContext(ctx, "events: forwarder stopped")
	}()

	select {
	case <-fwd.Running():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events: context cancelled waiting for forwarder: %w", ctx.Err())
	}
}

// DB returns the pool the bus writes to.
func (q *EventBus) DB() *sql.DB {
	return q.db
}

// NewTxPublisher returns a Publisher whose writes join tx, so a state change
// and its event commit or roll back together. In forwarder mode the messages
// are enveloped for the Forwarder. Tables must already exist.
func (q *EventBus) NewTxPublisher(tx *sql.Tx) (message.Publisher, error) {
	pub, err := watermillsql.NewPublisher(tx, watermillsql.PublisherConfig{
		SchemaAdapter: watermillsql.DefaultPostgreSQLSchema{},
	}, q.wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new tx publisher: %w", err)
	}
	if q.useForwarder {
		return forwarder.NewPublisher(pub, forwarder.PublisherConfig{ForwarderTopic: forwarderTopic}), nil
	}
	return pub, nil
}

// InjectTrace copies the OTel trace context from ctx into the message metadata.
func InjectTrace(ctx context.Context, msgs ...*message.Message) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, msg := range msgs {
		for k, v := range carrier {
			msg.Metadata.Set(k, v)
		}
		msg.SetContext(ctx)
	}
}

// Publish sends msgs to topic. Watermill's SQL publisher takes no context and
// its insert cannot be cancelled, so once ctx is done Publish keeps waiting up
// to the settle window for the insert to finish. Callers that serialize
// publishes per key can therefore release their lock knowing the row is
// either written or rejected. An insert still running after the window is
// reported as ErrPublishOutcomeUnknown.
func (q *EventBus) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	InjectTrace(ctx, msgs...)

	done := make(chan error, 1)
	go func() {
		done <- q.publisher.Publish(topic, msgs...) //nolint:contextcheck
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("events: publish to %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
	}

	settle := q.settle
	if settle <= 0 {
		settle = defaultPublishSettle
	}
	timer := time.NewTimer(settle)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("events: publish to %s: %w", topic, err)
		}
		q.log.WarnContext(ctx, "events: publish completed after deadline", "topic", topic)
		return nil
	case <-timer.C:
		return fmt.Errorf("events: publish to %s: %w: %w", topic, ErrPublishOutcomeUnknown, ctx.Err())
	}
}

// Subscribe runs handler for every message on topic in a background goroutine.
//
//   - handler returns nil: Ack
//   - handler returns error: retried up to 3 times (1s, 2s, 4s)
//   - retries exhausted: Nack, error sent to the returned channel
//
// The error channel is buffered and closed when the subscription ends; callers
// must drain it. Close waits for in-flight handlers.
func (q *EventBus) Subscribe(ctx context.Context, topic string, handler Handler) (<-chan error, error) {
	ch, err := q.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("events: subscribe to %s: %w", topic, err)
	}

	errCh := make(chan error, errChanSize)
	propagator := otel.GetTextMapPropagator()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(errCh)

		for msg := range ch {
			msgCtx := propagator.Extract(ctx, propagation.MapCarrier(msg.Metadata))

			if err := retryWithBackoff(msgCtx, msg, handler, maxRetries, retryBaseDelay, q.log); err != nil {
				msg.Nack()
				select {
				case errCh <- err:
				default:
					q.log.ErrorContext(msgCtx, "events: error channel full, dropping error",
						"error", err, "topic", topic)
				}
				continue
			}
			msg.Ack()
		}
	}()

	return errCh, nil
}

func retryWithBackoff(
	ctx context.Context,
	msg *message.Message,
	handler Handler,
	attempts int,
	baseDelay time.Duration,
	log logger.Logger,
) error {
	delay := baseDelay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		log.WarnContext(ctx, "events: handler failed, retrying",
			"message_uuid", msg.UUID,
			"attempt", attempt,
			"next_delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("events: handler failed after %d attempts: %w", attempts, err)
}

// Ping checks the EventBus database connection health.
func (q *EventBus) Ping(ctx context.Context) error {
	if err := q.db.PingContext(ctx); err != nil {
		return fmt.Errorf("events: ping db: %w", err)
	}
	return nil
}

// Close stops the subscriber and forwarder, waits up to 30s for in-flight
// handlers, then closes the publisher and the pool.
func (q *EventBus) Close() error {
	if err := q.subscriber.Close(); err != nil {
		return fmt.Errorf("events: close subscriber: %w", err)
	}
	if q.fwd != nil {
		if err := q.fwd.Close(); err != nil {
			return fmt.Errorf("events: close forwarder: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		q.log.Error("events: timed out waiting for in-flight handlers to complete")
	}

	if err := q.publisher.Close(); err != nil {
		return fmt.Errorf("events: close publisher: %w", err)
	}
	return q.db.Close()
}
