package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/helixir/author-matching-service/internal/domain"
	amtemporal "github.com/helixir/author-matching-service/internal/temporal"
	"github.com/helixir/author-matching-service/internal/temporal/activities"
)

var testRoster = domain.Roster{
	{ID: 1, FullName: "Roberto Mancilla", IsActive: true},
	{ID: 2, FullName: "Juan García", IsActive: true},
}

// chunkSummary reports every publication in the chunk as resolved with one
// auto-assigned decision.
func chunkSummary(_ context.Context, in activities.MatchChunkInput) (*domain.BatchSummary, error) {
	s := domain.NewBatchSummary(in.RunID.String())
	for range in.PublicationIDs {
		s.Add(domain.MatchStatusResolved, []domain.MatchDecision{{Tier: domain.ActionTierAutoAssign}}, 0)
	}
	return s, nil
}

func TestBatchMatchingWorkflow(t *testing.T) {
	t.Run("matches all chunks", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()
		runID := uuid.New()

		var act *activities.MatchingActivities
		env.OnActivity(act.LoadRoster, mock.Anything).
			Return(&activities.LoadRosterOutput{Roster: testRoster}, nil)
		env.OnActivity(act.ListPendingPublications, mock.Anything, activities.ListPendingInput{Limit: 10}).
			Return(&activities.ListPendingOutput{PublicationIDs: []int64{1, 2, 3, 4, 5}}, nil)

		var (
			mu     sync.Mutex
			chunks [][]int64
		)
		env.OnActivity(act.MatchChunk, mock.Anything, mock.Anything).
			Return(func(ctx context.Context, in activities.MatchChunkInput) (*domain.BatchSummary, error) {
				assert.Equal(t, runID, in.RunID)
				assert.Len(t, in.Roster, 2)
				mu.Lock()
				chunks = append(chunks, in.PublicationIDs)
				mu.Unlock()
				return chunkSummary(ctx, in)
			})

		var published *domain.BatchSummary
		env.OnActivity(act.PublishBatchSummary, mock.Anything, mock.Anything).
			Return(func(_ context.Context, s *domain.BatchSummary) error {
				published = s
				return nil
			})

		env.ExecuteWorkflow(BatchMatchingWorkflow, BatchMatchingInput{
			RunID:          runID,
			Limit:          10,
			ChunkSize:      2,
			MaxConcurrency: 2,
		})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result domain.BatchSummary
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, runID.String(), result.RunID)
		assert.Equal(t, 5, result.Publications)
		assert.Equal(t, 5, result.Resolved)
		assert.Equal(t, 5, result.DecisionsByTier[domain.ActionTierAutoAssign])
		assert.Equal(t, 0, result.Failed)
		assert.Len(t, chunks, 3)

		require.NotNil(t, published)
		assert.Equal(t, 5, published.Publications)
		assert.False(t, published.CompletedAt.IsZero())

		val, err := env.QueryWorkflow(amtemporal.QueryProgress)
		require.NoError(t, err)
		var progress amtemporal.BatchProgress
		require.NoError(t, val.Get(&progress))
		assert.Equal(t, amtemporal.BatchStatusCompleted, progress.Status)
		assert.Equal(t, 2, progress.Researchers)
		assert.Equal(t, 5, progress.Publications)
		assert.Equal(t, 3, progress.ChunksTotal)
		assert.Equal(t, 3, progress.ChunksCompleted)
		assert.Equal(t, 0, progress.ChunksFailed)
	})

	t.Run("failed chunk is counted and the batch completes", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var act *activities.MatchingActivities
		env.OnActivity(act.LoadRoster, mock.Anything).
			Return(&activities.LoadRosterOutput{Roster: testRoster}, nil)
		env.OnActivity(act.ListPendingPublications, mock.Anything, mock.Anything).
			Return(&activities.ListPendingOutput{PublicationIDs: []int64{1, 2, 3}}, nil)
		env.OnActivity(act.MatchChunk, mock.Anything, mock.Anything).
			Return(func(ctx context.Context, in activities.MatchChunkInput) (*domain.BatchSummary, error) {
				if in.PublicationIDs[0] == 3 {
					return nil, temporal.NewNonRetryableApplicationError("bad chunk", activities.ErrTypeInvalidInput, nil)
				}
				return chunkSummary(ctx, in)
			})
		env.OnActivity(act.PublishBatchSummary, mock.Anything, mock.Anything).Return(nil)

		env.ExecuteWorkflow(BatchMatchingWorkflow, BatchMatchingInput{
			RunID:     uuid.New(),
			ChunkSize: 2,
		})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result domain.BatchSummary
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, 2, result.Publications)
		assert.Equal(t, 1, result.Failed)

		val, err := env.QueryWorkflow(amtemporal.QueryProgress)
		require.NoError(t, err)
		var progress amtemporal.BatchProgress
		require.NoError(t, val.Get(&progress))
		assert.Equal(t, 1, progress.ChunksCompleted)
		assert.Equal(t, 1, progress.ChunksFailed)
	})

	t.Run("no pending publications", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var act *activities.MatchingActivities
		env.OnActivity(act.LoadRoster, mock.Anything).
			Return(&activities.LoadRosterOutput{Roster: testRoster}, nil)
		env.OnActivity(act.ListPendingPublications, mock.Anything, activities.ListPendingInput{Limit: DefaultBatchLimit}).
			Return(&activities.ListPendingOutput{}, nil)
		env.OnActivity(act.PublishBatchSummary, mock.Anything, mock.Anything).Return(nil)

		env.ExecuteWorkflow(BatchMatchingWorkflow, BatchMatchingInput{RunID: uuid.New()})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result domain.BatchSummary
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, 0, result.Publications)
	})

	t.Run("stop signal halts dispatch", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var act *activities.MatchingActivities
		env.OnActivity(act.LoadRoster, mock.Anything).
			Return(&activities.LoadRosterOutput{Roster: testRoster}, nil)
		env.OnActivity(act.ListPendingPublications, mock.Anything, mock.Anything).
			Return(&activities.ListPendingOutput{PublicationIDs: []int64{1, 2, 3}}, nil)

		calls := 0
		env.OnActivity(act.MatchChunk, mock.Anything, mock.Anything).
			After(time.Minute).
			Return(func(ctx context.Context, in activities.MatchChunkInput) (*domain.BatchSummary, error) {
				calls++
				return chunkSummary(ctx, in)
			})
		env.OnActivity(act.PublishBatchSummary, mock.Anything, mock.Anything).Return(nil)

		env.RegisterDelayedCallback(func() {
			env.SignalWorkflow(amtemporal.SignalStop, amtemporal.StopSignal{Reason: "maintenance"})
		}, 30*time.Second)

		env.ExecuteWorkflow(BatchMatchingWorkflow, BatchMatchingInput{
			RunID:          uuid.New(),
			ChunkSize:      1,
			MaxConcurrency: 1,
		})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result domain.BatchSummary
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, result.Publications)

		val, err := env.QueryWorkflow(amtemporal.QueryProgress)
		require.NoError(t, err)
		var progress amtemporal.BatchProgress
		require.NoError(t, val.Get(&progress))
		assert.Equal(t, amtemporal.BatchStatusStopped, progress.Status)
		assert.Equal(t, 3, progress.ChunksTotal)
		assert.Equal(t, 1, progress.ChunksCompleted)
	})

	t.Run("summary publish failure does not fail the batch", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var act *activities.MatchingActivities
		env.OnActivity(act.LoadRoster, mock.Anything).
			Return(&activities.LoadRosterOutput{Roster: testRoster}, nil)
		env.OnActivity(act.ListPendingPublications, mock.Anything, mock.Anything).
			Return(&activities.ListPendingOutput{PublicationIDs: []int64{1}}, nil)
		env.OnActivity(act.MatchChunk, mock.Anything, mock.Anything).Return(chunkSummary)
		env.OnActivity(act.PublishBatchSummary, mock.Anything, mock.Anything).
			Return(temporal.NewNonRetryableApplicationError("broker down", "publish", nil))

		env.ExecuteWorkflow(BatchMatchingWorkflow, BatchMatchingInput{RunID: uuid.New()})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())
	})

	t.Run("roster failure fails the workflow", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var act *activities.MatchingActivities
		env.OnActivity(act.LoadRoster, mock.Anything).
			Return(nil, temporal.NewNonRetryableApplicationError("database unavailable", "db", errors.New("boom")))

		env.ExecuteWorkflow(BatchMatchingWorkflow, BatchMatchingInput{RunID: uuid.New()})

		require.True(t, env.IsWorkflowCompleted())
		err := env.GetWorkflowError()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load roster")
	})

	t.Run("missing run id is generated", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var act *activities.MatchingActivities
		env.OnActivity(act.LoadRoster, mock.Anything).
			Return(&activities.LoadRosterOutput{}, nil)
		env.OnActivity(act.ListPendingPublications, mock.Anything, mock.Anything).
			Return(&activities.ListPendingOutput{}, nil)
		env.OnActivity(act.PublishBatchSummary, mock.Anything, mock.Anything).Return(nil)

		env.ExecuteWorkflow(BatchMatchingWorkflow, BatchMatchingInput{})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result domain.BatchSummary
		require.NoError(t, env.GetWorkflowResult(&result))
		_, err := uuid.Parse(result.RunID)
		assert.NoError(t, err)
	})
}

func TestMatchPublicationWorkflow(t *testing.T) {
	t.Run("matches a single publication", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()
		runID := uuid.New()

		var act *activities.MatchingActivities
		env.OnActivity(act.MatchChunk, mock.Anything, mock.Anything).
			Return(func(ctx context.Context, in activities.MatchChunkInput) (*domain.BatchSummary, error) {
				assert.Equal(t, []int64{42}, in.PublicationIDs)
				assert.Nil(t, in.Roster)
				return chunkSummary(ctx, in)
			})

		env.ExecuteWorkflow(MatchPublicationWorkflow, amtemporal.MatchPublicationInput{
			RunID:         runID,
			PublicationID: 42,
		})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result domain.BatchSummary
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, 1, result.Publications)
		assert.Equal(t, 1, result.Decisions)
	})

	t.Run("rejects non-positive id", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		env.ExecuteWorkflow(MatchPublicationWorkflow, amtemporal.MatchPublicationInput{RunID: uuid.New()})

		require.True(t, env.IsWorkflowCompleted())
		require.Error(t, env.GetWorkflowError())
	})

	t.Run("activity failure is returned", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()

		var act *activities.MatchingActivities
		env.OnActivity(act.MatchChunk, mock.Anything, mock.Anything).
			Return(nil, temporal.NewNonRetryableApplicationError("publication not found", activities.ErrTypeNotFound, nil))

		env.ExecuteWorkflow(MatchPublicationWorkflow, amtemporal.MatchPublicationInput{
			RunID:         uuid.New(),
			PublicationID: 7,
		})

		require.True(t, env.IsWorkflowCompleted())
		err := env.GetWorkflowError()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "match publication 7")
	})
}
