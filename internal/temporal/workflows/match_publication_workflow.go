package workflows

import (
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/helixir/author-matching-service/internal/domain"
	amtemporal "github.com/helixir/author-matching-service/internal/temporal"
	"github.com/helixir/author-matching-service/internal/temporal/activities"
)

// MatchPublicationWorkflow matches one stored publication against the
// current roster. It is started for every publication.registered event.
func MatchPublicationWorkflow(ctx workflow.Context, input amtemporal.MatchPublicationInput) (*domain.BatchSummary, error) {
	if input.PublicationID <= 0 {
		return nil, temporal.NewNonRetryableApplicationError("publication id must be positive", activities.ErrTypeInvalidInput, nil)
	}
	batch, err := withDefaults(ctx, amtemporal.BatchMatchingInput{RunID: input.RunID})
	if err != nil {
		return nil, err
	}

	var act *activities.MatchingActivities
	var summary domain.BatchSummary
	err = workflow.ExecuteActivity(chunkOptions(ctx), act.MatchChunk, activities.MatchChunkInput{
		RunID:          batch.RunID,
		PublicationIDs: []int64{input.PublicationID},
	}).Get(ctx, &summary)
	if err != nil {
		return nil, fmt.Errorf("match publication %d: %w", input.PublicationID, err)
	}

	workflow.GetLogger(ctx).Info("publication matched",
		"publicationID", input.PublicationID,
		"runID", batch.RunID,
		"decisions", summary.Decisions,
		"failed", summary.Failed,
	)
	return &summary, nil
}
