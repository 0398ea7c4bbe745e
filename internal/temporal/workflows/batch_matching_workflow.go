// Package workflows defines the Temporal workflows of the author matching
// service.
package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/helixir/author-matching-service/internal/domain"
	amtemporal "github.com/helixir/author-matching-service/internal/temporal"
	"github.com/helixir/author-matching-service/internal/temporal/activities"
)

// Batch defaults applied to zero input fields.
const (
	DefaultBatchLimit     = 500
	DefaultChunkSize      = 50
	DefaultMaxConcurrency = 4
)

// Activity timeouts.
const (
	storeActivityTimeout = time.Minute
	chunkActivityTimeout = 30 * time.Minute
	chunkHeartbeat       = time.Minute
)

// BatchMatchingInput is the shared input type of the batch workflow.
type BatchMatchingInput = amtemporal.BatchMatchingInput

// withDefaults fills zero fields of input. A missing run id falls back to the
// Temporal run id, or a recorded random one when that is not a UUID.
func withDefaults(ctx workflow.Context, input BatchMatchingInput) (BatchMatchingInput, error) {
	if input.Limit <= 0 {
		input.Limit = DefaultBatchLimit
	}
	if input.ChunkSize <= 0 {
		input.ChunkSize = DefaultChunkSize
	}
	if input.MaxConcurrency <= 0 {
		input.MaxConcurrency = DefaultMaxConcurrency
	}
	if input.RunID == uuid.Nil {
		runID, err := uuid.Parse(workflow.GetInfo(ctx).WorkflowExecution.RunID)
		if err != nil {
			encoded := workflow.SideEffect(ctx, func(workflow.Context) interface{} {
				return uuid.New()
			})
			if err := encoded.Get(&runID); err != nil {
				return input, temporal.NewNonRetryableApplicationError("run id is required", activities.ErrTypeInvalidInput, err)
			}
		}
		input.RunID = runID
	}
	return input, nil
}

func storeOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: storeActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})
}

func chunkOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: chunkActivityTimeout,
		HeartbeatTimeout:    chunkHeartbeat,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ErrTypeInvalidInput},
		},
	})
}

// BatchMatchingWorkflow matches up to Limit pending publications.
//
// The roster is loaded once and travels in every MatchChunk input, so all
// chunks of a batch score against the same snapshot even if the roster
// changes while the batch runs. At most MaxConcurrency chunks run at once.
// A chunk that fails after its retries is counted in the summary and does
// not fail the batch.
//
// The workflow answers the "progress" query and honours the "stop" signal,
// which stops dispatching new chunks.
func BatchMatchingWorkflow(ctx workflow.Context, input BatchMatchingInput) (*domain.BatchSummary, error) {
	logger := workflow.GetLogger(ctx)

	input, err := withDefaults(ctx, input)
	if err != nil {
		return nil, err
	}

	progress := &amtemporal.BatchProgress{
		RunID:  input.RunID.String(),
		Status: amtemporal.BatchStatusLoading,
	}
	if err := workflow.SetQueryHandler(ctx, amtemporal.QueryProgress, func() (*amtemporal.BatchProgress, error) {
		return progress, nil
	}); err != nil {
		return nil, fmt.Errorf("register query handler: %w", err)
	}

	stopped := false
	stopCh := workflow.GetSignalChannel(ctx, amtemporal.SignalStop)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		var sig amtemporal.StopSignal
		stopCh.Receive(gCtx, &sig)
		stopped = true
		logger.Info("stop requested", "runID", input.RunID, "reason", sig.Reason)
	})

	var act *activities.MatchingActivities
	summary := domain.NewBatchSummary(input.RunID.String())
	summary.StartedAt = workflow.Now(ctx)

	var roster activities.LoadRosterOutput
	if err := workflow.ExecuteActivity(storeOptions(ctx), act.LoadRoster).Get(ctx, &roster); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	if roster.Roster == nil {
		roster.Roster = domain.Roster{}
	}

	var pending activities.ListPendingOutput
	if err := workflow.ExecuteActivity(storeOptions(ctx), act.ListPendingPublications,
		activities.ListPendingInput{Limit: input.Limit}).Get(ctx, &pending); err != nil {
		return nil, fmt.Errorf("list pending publications: %w", err)
	}

	chunks := ChunkIDs(pending.PublicationIDs, input.ChunkSize)
	progress.Status = amtemporal.BatchStatusMatching
	progress.Researchers = len(roster.Roster)
	progress.Publications = len(pending.PublicationIDs)
	progress.ChunksTotal = len(chunks)
	logger.Info("batch matching started",
		"runID", input.RunID,
		"researchers", len(roster.Roster),
		"publications", len(pending.PublicationIDs),
		"chunks", len(chunks),
	)

	chunkCtx := chunkOptions(ctx)
	selector := workflow.NewSelector(ctx)
	inFlight, next := 0, 0
	for {
		for !stopped && next < len(chunks) && inFlight < input.MaxConcurrency {
			chunk := chunks[next]
			next++
			inFlight++
			future := workflow.ExecuteActivity(chunkCtx, act.MatchChunk, activities.MatchChunkInput{
				RunID:          input.RunID,
				PublicationIDs: chunk,
				Roster:         roster.Roster,
			})
			selector.AddFuture(future, func(f workflow.Future) {
				inFlight--
				var chunkSummary domain.BatchSummary
				if err := f.Get(ctx, &chunkSummary); err != nil {
					progress.ChunksFailed++
					summary.Failed += len(chunk)
					logger.Error("chunk failed", "runID", input.RunID, "publications", len(chunk), "error", err)
					return
				}
				progress.ChunksCompleted++
				summary.Merge(&chunkSummary)
			})
		}
		if inFlight == 0 {
			break
		}
		selector.Select(ctx)
	}

	summary.CompletedAt = workflow.Now(ctx)
	progress.Summary = summary
	progress.Status = amtemporal.BatchStatusCompleted
	if stopped && next < len(chunks) {
		progress.Status = amtemporal.BatchStatusStopped
	}

	if err := workflow.ExecuteActivity(storeOptions(ctx), act.PublishBatchSummary, summary).Get(ctx, nil); err != nil {
		logger.Warn("failed to publish batch summary", "runID", input.RunID, "error", err)
	}

	for _, tier := range SortedMapKeys(summary.DecisionsByTier) {
		logger.Info("batch decisions", "runID", input.RunID, "tier", tier, "count", summary.DecisionsByTier[tier])
	}
	logger.Info("batch matching finished",
		"runID", input.RunID,
		"status", progress.Status,
		"publications", summary.Publications,
		"resolved", summary.Resolved,
		"failed", summary.Failed,
	)
	return summary, nil
}
