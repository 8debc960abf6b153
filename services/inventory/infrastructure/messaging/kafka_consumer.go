package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/inventory/pkg/config"
	"github.com/ghuser/inventory/pkg/events"
	"github.com/ghuser/inventory/pkg/logger"
	domainevents "github.com/ghuser/inventory/services/inventory/domain/events"
)

const (
	kafkaHandlerAttempts  = 3
	kafkaHandlerBaseDelay = time.Second
)

// KafkaReader is the subset of *kafka.Reader the consumer needs.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaReader returns a consumer-group reader on cfg.KafkaTopic.
func NewKafkaReader(cfg *config.Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers(),
		GroupID:  cfg.ServiceName + "-consumer",
		Topic:    cfg.KafkaTopic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
}

// KafkaConsumer feeds Kafka records to an events.Handler, so the same
// handlers serve both transports.
type KafkaConsumer struct {
	r          KafkaReader
	log        logger.Logger
	retryDelay time.Duration
}

// NewKafkaConsumer returns a consumer reading from r.
func NewKafkaConsumer(r KafkaReader, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{r: r, log: log.With("component", "kafka_consumer"), retryDelay: kafkaHandlerBaseDelay}
}

// Run fetches records until ctx is cancelled. A record is committed once the
// handler succeeds or its attempts are exhausted; partition order is kept
// because records are handled one at a time.
func (c *KafkaConsumer) Run(ctx context.Context, handler events.Handler) error {
	for {
		rec, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		msg := FromKafka(rec)
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))
		if err := c.handle(msgCtx, msg, handler); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.ErrorContext(msgCtx, "kafka consumer: handler failed, skipping record",
				"partition", rec.Partition, "offset", rec.Offset, "error", err)
		}
		if err := c.r.CommitMessages(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg *message.Message, handler events.Handler) error {
	var err error
	delay := c.retryDelay
	for attempt := 1; attempt <= kafkaHandlerAttempts; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt == kafkaHandlerAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// FromKafka converts a Kafka record written by KafkaEmitter into a watermill
// message with the headers as metadata.
func FromKafka(rec kafka.Message) *message.Message {
	md := make(message.Metadata, len(rec.Headers))
	for _, h := range rec.Headers {
		md.Set(h.Key, string(h.Value))
	}
	msg := message.NewMessage(md.Get(domainevents.MetaEventID), rec.Value)
	msg.Metadata = md
	return msg
}
