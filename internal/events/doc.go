// Package events publishes author matching events to Kafka and consumes the
// publication events that trigger matching.
//
// # Components
//
//   - Emitter: builds domain events from pipeline results and batch summaries
//   - Publisher: writes events to the broker (KafkaPublisher, or NoopPublisher when Kafka is disabled)
//   - PublicationListener: consumes publication.registered events and starts a match workflow for each
//
// # Event Types
//
//   - match.decided: an author was assigned a candidate at tier AUTO_ASSIGN, AUTO_ASSIGN_WITH_LOG or MANUAL_REVIEW
//   - match.review_requested: a decision entered the manual review queue
//   - publication.unresolved: no DOI was found, or the DOI could not be resolved
//   - batch.completed: a batch run finished
//
// Messages are keyed by aggregate id so all events of one publication land on
// the same partition in order. The value is the JSON-encoded domain.Event.
package events
