package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for published matching events.
const (
	EventTypeMatchDecided          = "match.decided"
	EventTypeMatchReviewRequested  = "match.review_requested"
	EventTypePublicationUnresolved = "publication.unresolved"
	EventTypeBatchCompleted        = "batch.completed"

	// EventTypePublicationRegistered is consumed, not produced.
	EventTypePublicationRegistered = "publication.registered"
)

// Aggregate types carried on event envelopes.
const (
	AggregateTypePublication = "publication"
	AggregateTypeBatch       = "matching_batch"
)

// Event is a serialized domain event ready to be written to the bus.
type Event struct {
	EventID       string            `json:"event_id"`
	EventVersion  int               `json:"event_version"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewEvent creates a new event with the given parameters.
// The payload is JSON-serialized automatically.
func NewEvent(eventType, aggregateID, aggregateType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:       uuid.New().String(),
		EventVersion:  1,
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Payload:       payloadBytes,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// WithMetadata sets a metadata key on the event.
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// MatchDecidedPayload is the payload for match.decided and match.review_requested events.
type MatchDecidedPayload struct {
	RunID           string      `json:"run_id,omitempty"`
	PublicationID   int64       `json:"publication_id"`
	DOI             string      `json:"doi"`
	AuthorPosition  int         `json:"author_position"`
	AuthorName      string      `json:"author_name"`
	AuthorORCID     string      `json:"author_orcid,omitempty"`
	ResearcherID    *int64      `json:"researcher_id,omitempty"`
	Method          MatchMethod `json:"method"`
	Tier            ActionTier  `json:"tier"`
	FinalConfidence float64     `json:"final_confidence"`
	Signals         Signals     `json:"signals"`
}

// PublicationUnresolvedPayload is the payload for publication.unresolved events.
type PublicationUnresolvedPayload struct {
	RunID         string      `json:"run_id,omitempty"`
	PublicationID int64       `json:"publication_id"`
	URLOrDOI      string      `json:"url_or_doi"`
	Status        MatchStatus `json:"status"`
}

// PublicationRegisteredPayload is the payload of the consumed publication.registered event.
type PublicationRegisteredPayload struct {
	PublicationID int64  `json:"publication_id"`
	URLOrDOI      string `json:"url_or_doi,omitempty"`
}
