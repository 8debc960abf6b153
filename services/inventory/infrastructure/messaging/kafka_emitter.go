package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/inventory/pkg/config"
	"github.com/ghuser/inventory/pkg/logger"
	domainevents "github.com/ghuser/inventory/services/inventory/domain/events"
)

// KafkaWriter is the subset of *kafka.Writer the emitter needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds a synchronous writer for cfg.KafkaTopic.
// Messages are keyed by product, so the Hash balancer keeps every product on
// one partition and consumers see its changes in write order.
func NewKafkaWriter(cfg *config.Config, log logger.Logger) *kafka.Writer {
	klog := log.With("component", "kafka_writer")
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers()...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            1,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.PublishTimeout,
		AllowAutoTopicCreation: cfg.Environment != config.EnvProduction,
		Logger: kafka.LoggerFunc(func(msg string, args ...any) {
			klog.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			klog.Error(fmt.Sprintf(msg, args...))
		}),
	}
}

// KafkaEmitter publishes InventoryChanged to a Kafka topic.
type KafkaEmitter struct {
	w KafkaWriter
}

// NewKafkaEmitter returns an emitter writing through w.
func NewKafkaEmitter(w KafkaWriter) *KafkaEmitter {
	return &KafkaEmitter{w: w}
}

// Publish writes env keyed by productId with its metadata and the OTel trace
// context as headers.
func (e *KafkaEmitter) Publish(ctx context.Context, env domainevents.Envelope) error {
	payload, err := env.Payload()
	if err != nil {
		return err
	}

	carrier := propagation.MapCarrier(env.Metadata())
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	msg := kafka.Message{
		Key:     []byte(env.Event.ProductID),
		Value:   payload,
		Headers: headers,
		Time:    env.OccurredAt,
	}
	if err := e.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka emitter: %w", err)
	}
	return nil
}

// KafkaProbe reports whether any configured broker accepts connections.
type KafkaProbe struct {
	brokers []string
}

// NewKafkaProbe returns a health probe for brokers.
func NewKafkaProbe(brokers []string) *KafkaProbe {
	return &KafkaProbe{brokers: brokers}
}

// Ping dials the brokers in order and succeeds on the first that answers.
func (p *KafkaProbe) Ping(ctx context.Context) error {
	var lastErr error
	for _, b := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		return fmt.Errorf("kafka probe: no brokers configured")
	}
	return fmt.Errorf("kafka probe: %w", lastErr)
}
