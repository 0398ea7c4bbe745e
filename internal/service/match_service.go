// Package service composes the matching pipeline with persistence and event
// publishing. The HTTP API, the Temporal activities and matchctl all go
// through MatchService so a publication is recorded the same way whichever
// entry point matched it.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/events"
	"github.com/helixir/author-matching-service/internal/matching"
	"github.com/helixir/author-matching-service/internal/observability"
)

// PublicationStore is the subset of the publication repository the service reads.
type PublicationStore interface {
	Get(ctx context.Context, id int64) (*domain.Publication, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Publication, error)
	ListPending(ctx context.Context, limit int) ([]*domain.Publication, error)
}

// DecisionStore persists pipeline results.
type DecisionStore interface {
	SaveResult(ctx context.Context, runID uuid.UUID, publicationID int64, result *matching.Result) error
}

// Deps holds the collaborators of a MatchService. Publisher defaults to a
// NoopPublisher and Emitter to one named after the service.
type Deps struct {
	Pipeline     *matching.Pipeline
	Researchers  matching.RosterProvider
	Publications PublicationStore
	Decisions    DecisionStore
	Emitter      *events.Emitter
	Publisher    events.Publisher
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
}

// MatchService matches publications against the stored roster and records
// the outcome.
type MatchService struct {
	pipeline     *matching.Pipeline
	runner       *matching.BatchRunner
	researchers  matching.RosterProvider
	publications PublicationStore
	decisions    DecisionStore
	emitter      *events.Emitter
	publisher    events.Publisher
	logger       zerolog.Logger
}

// NewMatchService creates a MatchService from deps.
func NewMatchService(deps Deps) (*MatchService, error) {
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if deps.Researchers == nil {
		return nil, fmt.Errorf("researcher store is required")
	}
	if deps.Publications == nil || deps.Decisions == nil {
		return nil, fmt.Errorf("publication and decision stores are required")
	}

	emitter := deps.Emitter
	if emitter == nil {
		emitter = events.NewEmitter(events.DefaultServiceName)
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	logger := deps.Logger.With().Str("component", "match_service").Logger()

	return &MatchService{
		pipeline:     deps.Pipeline,
		runner:       matching.NewBatchRunner(deps.Pipeline, logger, deps.Metrics),
		researchers:  deps.Researchers,
		publications: deps.Publications,
		decisions:    deps.Decisions,
		emitter:      emitter,
		publisher:    publisher,
		logger:       logger,
	}, nil
}

// Roster loads the active roster.
func (s *MatchService) Roster(ctx context.Context) (domain.Roster, error) {
	researchers, err := s.researchers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return domain.Roster(researchers), nil
}

// MatchAdHoc matches a reference that is not stored. Nothing is persisted.
func (s *MatchService) MatchAdHoc(ctx context.Context, ref domain.RawPublicationRef) (*matching.Result, error) {
	if ref.URLOrDOI == "" && ref.FreeTextAuthors == "" {
		return nil, domain.NewValidationError("url_or_doi", "either url_or_doi or free_text_authors is required")
	}
	ref.PublicationID = 0

	roster, err := s.Roster(ctx)
	if err != nil {
		return nil, err
	}
	return s.pipeline.MatchPublication(ctx, ref, roster), nil
}

// MatchStored matches one stored publication, persists its decisions under
// runID and publishes the resulting events.
func (s *MatchService) MatchStored(ctx context.Context, runID uuid.UUID, publicationID int64) (*matching.Result, error) {
	pub, err := s.publications.Get(ctx, publicationID)
	if err != nil {
		return nil, err
	}
	roster, err := s.Roster(ctx)
	if err != nil {
		return nil, err
	}

	ctx = observability.WithRunID(ctx, runID.String())
	ref := pub.Ref()
	res := s.pipeline.MatchPublication(ctx, ref, roster)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.record(ctx, runID, ref, res); err != nil {
		return nil, err
	}
	return res, nil
}

// MatchByIDs matches the stored publications with the given ids. A nil roster
// is loaded from the store; batch workflows pass the snapshot they took once
// for the whole run. Ids that no longer exist are counted as failed.
func (s *MatchService) MatchByIDs(ctx context.Context, runID uuid.UUID, ids []int64, roster domain.Roster) (*domain.BatchSummary, error) {
	pubs, err := s.publications.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load publications: %w", err)
	}
	if roster == nil {
		if roster, err = s.Roster(ctx); err != nil {
			return nil, err
		}
	}

	summary, err := s.MatchPublications(ctx, runID, pubs, roster)
	if err != nil {
		return nil, err
	}
	summary.Failed += len(ids) - len(pubs)
	return summary, nil
}

// MatchPublications runs the batch runner over pubs and records every result.
//
// A publication deleted while the batch ran is counted as failed. Any other
// persistence error aborts the call; SaveResult is an upsert, so the caller
// may retry the whole set.
func (s *MatchService) MatchPublications(ctx context.Context, runID uuid.UUID, pubs []*domain.Publication, roster domain.Roster) (*domain.BatchSummary, error) {
	ctx = observability.WithRunID(ctx, runID.String())
	logger := observability.WithBatchContext(observability.LoggerFromContext(ctx, s.logger), runID.String(), len(pubs))

	refs := make([]domain.RawPublicationRef, len(pubs))
	for i, p := range pubs {
		refs[i] = p.Ref()
	}

	results := s.runner.Run(ctx, refs, roster)
	// Results produced after cancellation carry no real outcome.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := domain.NewBatchSummary(runID.String())
	for i, res := range results {
		if res == nil {
			summary.Failed++
			continue
		}
		if err := s.record(ctx, runID, refs[i], res); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn().Int64("publication_id", refs[i].PublicationID).Msg("publication disappeared before its decisions were saved")
				summary.Failed++
				continue
			}
			return nil, err
		}
		summary.Add(res.Status, res.Decisions, len(res.UnresolvedAuthors))
	}
	return summary, nil
}

// RunBatch matches up to limit pending publications in process and publishes
// the summary.
func (s *MatchService) RunBatch(ctx context.Context, runID uuid.UUID, limit int) (*domain.BatchSummary, error) {
	started := time.Now().UTC()

	roster, err := s.Roster(ctx)
	if err != nil {
		return nil, err
	}
	pubs, err := s.publications.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending publications: %w", err)
	}

	summary, err := s.MatchPublications(ctx, runID, pubs, roster)
	if err != nil {
		return nil, err
	}
	summary.StartedAt = started
	summary.CompletedAt = time.Now().UTC()

	if err := s.PublishSummary(ctx, summary); err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID.String()).Msg("failed to publish batch summary")
	}
	return summary, nil
}

// PublishSummary publishes the batch.completed event for summary.
func (s *MatchService) PublishSummary(ctx context.Context, summary *domain.BatchSummary) error {
	ev, err := s.emitter.BatchCompleted(ctx, summary)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, ev)
}

// record persists res and publishes its events. Events are best effort: the
// decisions are already stored when publishing fails.
func (s *MatchService) record(ctx context.Context, runID uuid.UUID, ref domain.RawPublicationRef, res *matching.Result) error {
	if err := s.decisions.SaveResult(ctx, runID, ref.PublicationID, res); err != nil {
		return fmt.Errorf("save result for publication %d: %w", ref.PublicationID, err)
	}

	evs, err := s.emitter.ResultEvents(ctx, runID.String(), ref, res)
	if err == nil && len(evs) > 0 {
		err = s.publisher.Publish(ctx, evs...)
	}
	if err != nil {
		observability.LoggerFromContext(ctx, s.logger).Warn().
			Err(err).
			Int64("publication_id", ref.PublicationID).
			Msg("failed to publish match events")
	}
	return nil
}
