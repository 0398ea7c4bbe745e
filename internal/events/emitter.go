package events

import (
	"context"
	"fmt"
	"strconv"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/matching"
	"github.com/helixir/author-matching-service/internal/observability"
)

// DefaultServiceName is stamped into event metadata when none is configured.
const DefaultServiceName = "author-matching-service"

// Emitter builds domain events enriched with service and tracing metadata.
type Emitter struct {
	serviceName string
}

// NewEmitter creates an Emitter for serviceName.
func NewEmitter(serviceName string) *Emitter {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	return &Emitter{serviceName: serviceName}
}

// ResultEvents returns the events describing one persisted pipeline result:
// a match.decided per non-SKIP decision, a match.review_requested per
// MANUAL_REVIEW decision, or a single publication.unresolved when the
// publication could not be resolved. ref is the input the result was computed from.
func (e *Emitter) ResultEvents(ctx context.Context, runID string, ref domain.RawPublicationRef, res *matching.Result) ([]*domain.Event, error) {
	if res == nil {
		return nil, nil
	}
	aggregateID := strconv.FormatInt(res.PublicationID, 10)

	if res.Status.IsUnresolved() {
		ev, err := e.newEvent(ctx, runID, domain.EventTypePublicationUnresolved, aggregateID, domain.AggregateTypePublication,
			domain.PublicationUnresolvedPayload{
				RunID:         runID,
				PublicationID: res.PublicationID,
				URLOrDOI:      ref.URLOrDOI,
				Status:        res.Status,
			})
		if err != nil {
			return nil, err
		}
		return []*domain.Event{ev}, nil
	}

	out := make([]*domain.Event, 0, len(res.Decisions))
	for _, d := range res.Decisions {
		if d.Tier == domain.ActionTierSkip {
			continue
		}
		payload := domain.MatchDecidedPayload{
			RunID:           runID,
			PublicationID:   res.PublicationID,
			DOI:             res.DOI,
			AuthorPosition:  d.Author.Position,
			AuthorName:      d.Author.DisplayName(),
			AuthorORCID:     d.Author.UniqueID,
			ResearcherID:    d.Candidate.ResearcherID,
			Method:          d.Candidate.Method,
			Tier:            d.Tier,
			FinalConfidence: d.Candidate.FinalConfidence,
			Signals:         d.Candidate.Signals,
		}

		ev, err := e.newEvent(ctx, runID, domain.EventTypeMatchDecided, aggregateID, domain.AggregateTypePublication, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)

		if d.Tier == domain.ActionTierManualReview {
			ev, err := e.newEvent(ctx, runID, domain.EventTypeMatchReviewRequested, aggregateID, domain.AggregateTypePublication, payload)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
	}
	return out, nil
}

// BatchCompleted returns the batch.completed event for summary.
func (e *Emitter) BatchCompleted(ctx context.Context, summary *domain.BatchSummary) (*domain.Event, error) {
	if summary == nil {
		return nil, fmt.Errorf("summary is required")
	}
	return e.newEvent(ctx, summary.RunID, domain.EventTypeBatchCompleted, summary.RunID, domain.AggregateTypeBatch, summary)
}

func (e *Emitter) newEvent(ctx context.Context, runID, eventType, aggregateID, aggregateType string, payload interface{}) (*domain.Event, error) {
	ev, err := domain.NewEvent(eventType, aggregateID, aggregateType, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	ev.WithMetadata("source", e.serviceName)
	if runID != "" {
		ev.WithMetadata("run_id", runID)
	}
	if id := observability.CorrelationIDFromContext(ctx); id != "" {
		ev.WithMetadata("correlation_id", id)
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		ev.WithMetadata("request_id", id)
	}
	return ev, nil
}
