package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/helixir/author-matching-service/internal/domain"
)

// heartbeatInterval is how often MatchChunk reports liveness while the batch
// runner works. Workflows set a heartbeat timeout well above it.
const heartbeatInterval = 10 * time.Second

// Matcher runs and records matches. *service.MatchService implements it.
type Matcher interface {
	Roster(ctx context.Context) (domain.Roster, error)
	MatchByIDs(ctx context.Context, runID uuid.UUID, ids []int64, roster domain.Roster) (*domain.BatchSummary, error)
	PublishSummary(ctx context.Context, summary *domain.BatchSummary) error
}

// PendingLister lists publications that still need matching.
type PendingLister interface {
	ListPending(ctx context.Context, limit int) ([]*domain.Publication, error)
}

// MatchingActivities are the activities of the batch and single-publication
// matching workflows. Methods on this struct are registered as Temporal
// activities via the worker.
type MatchingActivities struct {
	matcher      Matcher
	publications PendingLister
}

// NewMatchingActivities creates a new MatchingActivities instance.
func NewMatchingActivities(matcher Matcher, publications PendingLister) *MatchingActivities {
	return &MatchingActivities{matcher: matcher, publications: publications}
}

// LoadRoster snapshots the active roster once for a batch.
func (a *MatchingActivities) LoadRoster(ctx context.Context) (*LoadRosterOutput, error) {
	logger := activity.GetLogger(ctx)

	roster, err := a.matcher.Roster(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if roster == nil {
		roster = domain.Roster{}
	}

	logger.Info("roster loaded", "researchers", len(roster))
	return &LoadRosterOutput{Roster: roster}, nil
}

// ListPendingPublications returns the ids of up to Limit pending publications.
func (a *MatchingActivities) ListPendingPublications(ctx context.Context, input ListPendingInput) (*ListPendingOutput, error) {
	pubs, err := a.publications.ListPending(ctx, input.Limit)
	if err != nil {
		return nil, classify(fmt.Errorf("list pending publications: %w", err))
	}

	ids := make([]int64, len(pubs))
	for i, p := range pubs {
		ids[i] = p.ID
	}
	activity.GetLogger(ctx).Info("pending publications listed", "limit", input.Limit, "found", len(ids))
	return &ListPendingOutput{PublicationIDs: ids}, nil
}

// MatchChunk matches and persists one chunk of publications.
//
// Re-running a chunk is safe: decisions are upserted per author position and
// completed reviews are kept.
func (a *MatchingActivities) MatchChunk(ctx context.Context, input MatchChunkInput) (*domain.BatchSummary, error) {
	logger := activity.GetLogger(ctx)
	if input.RunID == uuid.Nil {
		return nil, classify(domain.NewValidationError("run_id", "is required"))
	}
	if len(input.PublicationIDs) == 0 {
		return domain.NewBatchSummary(input.RunID.String()), nil
	}

	logger.Info("matching chunk",
		"runID", input.RunID,
		"publications", len(input.PublicationIDs),
		"attempt", activity.GetInfo(ctx).Attempt,
	)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, len(input.PublicationIDs))
			}
		}
	}()

	summary, err := a.matcher.MatchByIDs(ctx, input.RunID, input.PublicationIDs, input.Roster)
	if err != nil {
		logger.Error("chunk failed", "runID", input.RunID, "error", err)
		return nil, classify(err)
	}

	logger.Info("chunk matched",
		"runID", input.RunID,
		"resolved", summary.Resolved,
		"decisions", summary.Decisions,
		"failed", summary.Failed,
	)
	return summary, nil
}

// PublishBatchSummary publishes the batch.completed event.
func (a *MatchingActivities) PublishBatchSummary(ctx context.Context, summary *domain.BatchSummary) error {
	if summary == nil {
		return classify(domain.NewValidationError("summary", "is required"))
	}
	if err := a.matcher.PublishSummary(ctx, summary); err != nil {
		return fmt.Errorf("publish batch summary: %w", err)
	}
	activity.GetLogger(ctx).Info("batch summary published", "runID", summary.RunID, "publications", summary.Publications)
	return nil
}
