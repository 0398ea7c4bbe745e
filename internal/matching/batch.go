package matching

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/observability"
)

// RosterProvider loads the active researcher roster.
type RosterProvider interface {
	ListActive(ctx context.Context) ([]domain.InternalResearcher, error)
}

// BatchRunner matches a worklist of publications against one roster snapshot.
type BatchRunner struct {
	pipeline    *Pipeline
	concurrency int
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewBatchRunner creates a runner bounded by the pipeline's Concurrency.
func NewBatchRunner(pipeline *Pipeline, logger zerolog.Logger, metrics *observability.Metrics) *BatchRunner {
	concurrency := pipeline.Config().Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchRunner{
		pipeline:    pipeline,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "batch_runner").Logger(),
		metrics:     metrics,
	}
}

// Run matches every ref and returns the results in input order. The roster is
// copied before the first publication is scored, so callers may reuse or
// modify their slice while the batch runs.
//
// Once ctx is done the remaining publications still get a result, with the
// unresolved_metadata status.
func (b *BatchRunner) Run(ctx context.Context, refs []domain.RawPublicationRef, roster domain.Roster) []*Result {
	snapshot := roster.Snapshot()
	results := make([]*Result, len(refs))
	start := time.Now()

	logger := observability.LoggerFromContext(ctx, b.logger)
	logger.Info().
		Int("publications", len(refs)).
		Int("researchers", len(snapshot)).
		Int("concurrency", b.concurrency).
		Msg("batch started")
	b.metrics.RecordBatchStarted()

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = b.pipeline.MatchPublication(ctx, ref, snapshot)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	if ctx.Err() != nil {
		b.metrics.RecordBatchFailed(elapsed.Seconds())
		logger.Warn().Err(ctx.Err()).Dur("elapsed", elapsed).Msg("batch interrupted")
		return results
	}

	b.metrics.RecordBatchCompleted(elapsed.Seconds())
	logger.Info().
		Int("publications", len(refs)).
		Dur("elapsed", elapsed).
		Msg("batch completed")
	return results
}

// Summarize folds results into a batch summary for runID.
func Summarize(runID string, results []*Result) *domain.BatchSummary {
	summary := domain.NewBatchSummary(runID)
	for _, r := range results {
		if r == nil {
			summary.Failed++
			continue
		}
		summary.Add(r.Status, r.Decisions, len(r.UnresolvedAuthors))
	}
	return summary
}
