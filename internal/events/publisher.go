package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/observability"
)

// Publisher writes events to the message bus.
type Publisher interface {
	// Publish writes events in order. It either writes all of them or
	// returns an error.
	Publish(ctx context.Context, events ...*domain.Event) error
	Close() error
}

// PublisherConfig holds configuration for the Kafka publisher.
type PublisherConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic events are written to.
	Topic string
	// BatchSize is the maximum number of messages per produce request.
	BatchSize int
	// BatchTimeout bounds how long an incomplete batch waits before being sent.
	BatchTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes JSON-encoded events with kafka-go.
type KafkaPublisher struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg PublisherConfig, metrics *observability.Metrics, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(writer, metrics, logger.With().Str("topic", cfg.Topic).Logger())
}

func newKafkaPublisher(writer messageWriter, metrics *observability.Metrics, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		metrics: metrics,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish writes events keyed by aggregate id.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		value, err := json.Marshal(ev)
		if err != nil {
			p.metrics.RecordEventFailed(ev.EventType)
			return fmt.Errorf("marshal event %s: %w", ev.EventID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.AggregateID),
			Value: value,
			Time:  ev.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.EventType)},
				{Key: "event_id", Value: []byte(ev.EventID)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		for _, ev := range events {
			if ev != nil {
				p.metrics.RecordEventFailed(ev.EventType)
			}
		}
		p.logger.Error().Err(err).Int("count", len(msgs)).Msg("failed to publish events")
		return fmt.Errorf("publish %d events: %w", len(msgs), err)
	}

	for _, ev := range events {
		if ev != nil {
			p.metrics.RecordEventPublished(ev.EventType)
		}
	}
	p.logger.Debug().Int("count", len(msgs)).Msg("published events")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards events. It is used when Kafka is disabled.
type NoopPublisher struct{}

// Publish discards events.
func (NoopPublisher) Publish(context.Context, ...*domain.Event) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
