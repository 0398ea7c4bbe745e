package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/matching"
)

// DecisionRepository persists match decisions and serves the review queue.
type DecisionRepository interface {
	// SaveResult persists one pipeline result atomically: the resolved
	// author list, one decision per author position, researcher links for
	// automatically assigned decisions, and the publication's match status.
	//
	// Re-saving a publication overwrites scores but keeps any review a human
	// has already completed.
	SaveResult(ctx context.Context, runID uuid.UUID, publicationID int64, result *matching.Result) error

	// ListByPublication returns the decisions of a publication ordered by author position.
	ListByPublication(ctx context.Context, publicationID int64) ([]*domain.StoredDecision, error)

	// List returns decisions matching the filter, newest first, along with
	// the total number of matching rows.
	List(ctx context.Context, filter DecisionFilter) ([]*domain.StoredDecision, int64, error)

	// Review closes a decision. Accepting links the candidate researcher to the
	// publication; rejecting removes any link the decision created.
	// Returns domain.ErrNotFound if the decision does not exist and
	// domain.ErrReviewClosed if it was already reviewed.
	Review(ctx context.Context, id uuid.UUID, accepted bool, reviewer string) (*domain.StoredDecision, error)
}

// DecisionFilter narrows a decision listing.
type DecisionFilter struct {
	// Tier filters by action tier (optional).
	Tier domain.ActionTier

	// ReviewStatus filters by review state (optional).
	ReviewStatus domain.ReviewStatus

	// RunID filters to the decisions written by one batch run (optional).
	RunID uuid.UUID

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks the filter values and applies pagination defaults.
func (f *DecisionFilter) Validate() error {
	if f.Tier != "" && !f.Tier.IsValid() {
		return domain.NewValidationError("tier", "unknown action tier")
	}
	if f.ReviewStatus != "" && !f.ReviewStatus.IsValid() {
		return domain.NewValidationError("review_status", "unknown review status")
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
