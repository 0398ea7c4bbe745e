package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/author-matching-service/internal/domain"
)

// PublicationMatchStarter starts matching for one stored publication and
// returns the workflow id handling it.
type PublicationMatchStarter interface {
	StartPublicationMatch(ctx context.Context, publicationID int64) (string, error)
}

// ListenerConfig holds configuration for the publication listener.
type ListenerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic carries publication.registered events.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// messageReader is the subset of *kafka.Reader the listener uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublicationListener consumes publication.registered events and starts a
// match workflow for each registered publication.
type PublicationListener struct {
	reader  messageReader
	starter PublicationMatchStarter
	logger  zerolog.Logger
}

// NewPublicationListener creates a listener in consumer group cfg.GroupID.
func NewPublicationListener(cfg ListenerConfig, starter PublicationMatchStarter, logger zerolog.Logger) *PublicationListener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newPublicationListener(reader, starter, logger)
}

func newPublicationListener(reader messageReader, starter PublicationMatchStarter, logger zerolog.Logger) *PublicationListener {
	return &PublicationListener{
		reader:  reader,
		starter: starter,
		logger:  logger.With().Str("component", "publication_listener").Logger(),
	}
}

// Run starts the listener loop. Blocks until context is cancelled.
//
// Offsets are committed only after a message has been handled, so a crash
// mid-handling redelivers it. Workflow ids are derived from the publication id,
// which makes a redelivered start a no-op. Messages that fail to handle are
// still committed; they are logged rather than retried forever.
func (l *PublicationListener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting publication listener")

	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("publication listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received publication event")

		if err := l.handleMessage(ctx, msg); err != nil {
			l.logger.Error().Err(err).
				Int64("offset", msg.Offset).
				Msg("failed to handle publication event")
		}

		if err := l.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error().Err(err).
				Int64("offset", msg.Offset).
				Msg("failed to commit publication event")
		}
	}
}

// handleMessage decodes one message and starts matching for it. Events of
// other types are ignored.
func (l *PublicationListener) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	if event.EventType != domain.EventTypePublicationRegistered {
		l.logger.Debug().Str("event_type", event.EventType).Msg("ignoring event")
		return nil
	}

	var payload domain.PublicationRegisteredPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", event.EventType, err)
	}
	if payload.PublicationID <= 0 {
		return domain.NewValidationError("publication_id", "publication id must be positive")
	}

	workflowID, err := l.starter.StartPublicationMatch(ctx, payload.PublicationID)
	if err != nil {
		return fmt.Errorf("start match for publication %d: %w", payload.PublicationID, err)
	}

	l.logger.Info().
		Int64("publication_id", payload.PublicationID).
		Str("workflow_id", workflowID).
		Str("event_id", event.EventID).
		Msg("started publication match")
	return nil
}

// Close closes the Kafka reader.
func (l *PublicationListener) Close() error {
	l.logger.Info().Msg("closing publication listener")
	return l.reader.Close()
}
