package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/mocks"

	"github.com/helixir/author-matching-service/internal/domain"
)

// jsonValue is a converter.EncodedValue backed by a JSON document.
type jsonValue struct{ raw []byte }

func (v jsonValue) HasValue() bool { return len(v.raw) > 0 }

func (v jsonValue) Get(ptr interface{}) error { return json.Unmarshal(v.raw, ptr) }

type startCall struct {
	options  client.StartWorkflowOptions
	workflow interface{}
	args     []interface{}
}

type fakeWorkflowClient struct {
	starts    []startCall
	startErr  error
	queryErr  error
	query     converter.EncodedValue
	queried   []string
	signals   []string
	signalErr error
	healthErr error
	closed    int
}

func (f *fakeWorkflowClient) ExecuteWorkflow(_ context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.starts = append(f.starts, startCall{options: options, workflow: workflow, args: args})
	if f.startErr != nil {
		return nil, f.startErr
	}
	run := &mocks.WorkflowRun{}
	run.On("GetRunID").Return("run-1")
	return run, nil
}

func (f *fakeWorkflowClient) QueryWorkflow(_ context.Context, workflowID, _, queryType string, _ ...interface{}) (converter.EncodedValue, error) {
	f.queried = append(f.queried, workflowID+"/"+queryType)
	return f.query, f.queryErr
}

func (f *fakeWorkflowClient) SignalWorkflow(_ context.Context, workflowID, _, signalName string, arg interface{}) error {
	f.signals = append(f.signals, workflowID+"/"+signalName+"/"+arg.(StopSignal).Reason)
	return f.signalErr
}

func (f *fakeWorkflowClient) CheckHealth(context.Context, *client.CheckHealthRequest) (*client.CheckHealthResponse, error) {
	return &client.CheckHealthResponse{}, f.healthErr
}

func (f *fakeWorkflowClient) Close() { f.closed++ }

func TestTemporalError(t *testing.T) {
	t.Run("Error includes all fields", func(t *testing.T) {
		err := &TemporalError{
			Op:         "StartBatch",
			Kind:       ErrWorkflowNotFound,
			WorkflowID: "wf-123",
			RunID:      "run-456",
			Err:        errors.New("underlying error"),
		}

		msg := err.Error()
		assert.Contains(t, msg, "StartBatch")
		assert.Contains(t, msg, "workflow not found")
		assert.Contains(t, msg, "wf-123")
		assert.Contains(t, msg, "run-456")
		assert.Contains(t, msg, "underlying error")
	})

	t.Run("Error without workflow IDs", func(t *testing.T) {
		msg := (&TemporalError{Op: "Health", Kind: ErrConnectionFailed}).Error()
		assert.Contains(t, msg, "connection failed")
		assert.NotContains(t, msg, "workflowID")
	})

	t.Run("Unwrap returns underlying error", func(t *testing.T) {
		underlying := errors.New("underlying")
		err := &TemporalError{Op: "Test", Kind: ErrConnectionFailed, Err: underlying}
		assert.Equal(t, underlying, err.Unwrap())
	})

	t.Run("matches domain sentinels", func(t *testing.T) {
		assert.ErrorIs(t, &TemporalError{Kind: ErrWorkflowNotFound}, domain.ErrNotFound)
		assert.ErrorIs(t, &TemporalError{Kind: ErrWorkflowAlreadyStarted}, domain.ErrAlreadyExists)
		assert.ErrorIs(t, &TemporalError{Kind: ErrInvalidArgument}, domain.ErrInvalidInput)
		assert.ErrorIs(t, &TemporalError{Kind: ErrConnectionFailed}, domain.ErrServiceUnavailable)
		assert.ErrorIs(t, &TemporalError{Kind: ErrClientClosed}, domain.ErrServiceUnavailable)
		assert.NotErrorIs(t, &TemporalError{Kind: ErrQueryFailed}, domain.ErrNotFound)
	})
}

func TestWrapTemporalError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", serviceerror.NewNotFound("not found"), ErrWorkflowNotFound},
		{"already started", serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", ""), ErrWorkflowAlreadyStarted},
		{"invalid argument", serviceerror.NewInvalidArgument("bad"), ErrInvalidArgument},
		{"query failed", serviceerror.NewQueryFailed("no handler"), ErrQueryFailed},
		{"deadline", context.DeadlineExceeded, ErrDeadlineExceeded},
		{"cancelled", context.Canceled, ErrClientClosed},
		{"unknown", errors.New("boom"), ErrConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := wrapTemporalError("Test", tt.err, "wf-1", "")

			var te *TemporalError
			require.True(t, errors.As(result, &te))
			assert.Equal(t, tt.want, te.Kind)
			assert.ErrorIs(t, result, tt.err)
		})
	}

	assert.Nil(t, wrapTemporalError("Test", nil, "", ""))
}

func TestWorkflowIDs(t *testing.T) {
	runID := uuid.MustParse("7d4c6f0e-8a51-4a3e-9a57-1f0c2b3d4e5f")
	assert.Equal(t, "match-batch-7d4c6f0e-8a51-4a3e-9a57-1f0c2b3d4e5f", BatchWorkflowID(runID))
	assert.Equal(t, "match-publication-42", PublicationWorkflowID(42))
}

func TestMatchingClient_StartBatch(t *testing.T) {
	t.Run("starts the batch workflow by name", func(t *testing.T) {
		fake := &fakeWorkflowClient{}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "author-matching"})

		runID := uuid.New()
		handle, err := mc.StartBatch(context.Background(), BatchMatchingInput{RunID: runID, Limit: 100, ChunkSize: 25})
		require.NoError(t, err)

		assert.Equal(t, BatchWorkflowID(runID), handle.WorkflowID)
		assert.Equal(t, "run-1", handle.RunID)
		require.Len(t, fake.starts, 1)
		call := fake.starts[0]
		assert.Equal(t, BatchMatchingWorkflowName, call.workflow)
		assert.Equal(t, "author-matching", call.options.TaskQueue)
		assert.Equal(t, DefaultBatchExecutionTimeout, call.options.WorkflowExecutionTimeout)
		require.Len(t, call.args, 1)
		assert.Equal(t, 100, call.args[0].(BatchMatchingInput).Limit)
	})

	t.Run("assigns a run id", func(t *testing.T) {
		fake := &fakeWorkflowClient{}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})

		_, err := mc.StartBatch(context.Background(), BatchMatchingInput{Limit: 10})
		require.NoError(t, err)

		input := fake.starts[0].args[0].(BatchMatchingInput)
		assert.NotEqual(t, uuid.Nil, input.RunID)
		assert.Equal(t, BatchWorkflowID(input.RunID), fake.starts[0].options.ID)
	})

	t.Run("closed client", func(t *testing.T) {
		fake := &fakeWorkflowClient{}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})
		mc.Close()
		mc.Close()

		_, err := mc.StartBatch(context.Background(), BatchMatchingInput{})
		assert.ErrorIs(t, err, ErrClientClosed)
		assert.Equal(t, 1, fake.closed)
		assert.Empty(t, fake.starts)
	})
}

func TestMatchingClient_StartPublicationMatch(t *testing.T) {
	t.Run("starts one workflow per publication", func(t *testing.T) {
		fake := &fakeWorkflowClient{}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})

		id, err := mc.StartPublicationMatch(context.Background(), 42)
		require.NoError(t, err)

		assert.Equal(t, "match-publication-42", id)
		assert.Equal(t, MatchPublicationWorkflowName, fake.starts[0].workflow)
		input := fake.starts[0].args[0].(MatchPublicationInput)
		assert.Equal(t, int64(42), input.PublicationID)
		assert.NotEqual(t, uuid.Nil, input.RunID)
	})

	t.Run("already running is not an error", func(t *testing.T) {
		fake := &fakeWorkflowClient{startErr: serviceerror.NewWorkflowExecutionAlreadyStarted("running", "", "")}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})

		id, err := mc.StartPublicationMatch(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, "match-publication-42", id)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		fake := &fakeWorkflowClient{startErr: serviceerror.NewUnavailable("down")}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})

		_, err := mc.StartPublicationMatch(context.Background(), 42)
		assert.ErrorIs(t, err, ErrConnectionFailed)
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})

	t.Run("rejects non-positive ids", func(t *testing.T) {
		fake := &fakeWorkflowClient{}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})

		_, err := mc.StartPublicationMatch(context.Background(), 0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Empty(t, fake.starts)
	})
}

func TestMatchingClient_BatchProgress(t *testing.T) {
	t.Run("decodes the progress query", func(t *testing.T) {
		raw, err := json.Marshal(BatchProgress{RunID: "r1", Status: BatchStatusMatching, ChunksTotal: 4, ChunksCompleted: 1})
		require.NoError(t, err)
		fake := &fakeWorkflowClient{query: jsonValue{raw: raw}}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})

		progress, err := mc.BatchProgress(context.Background(), "match-batch-r1")
		require.NoError(t, err)

		assert.Equal(t, []string{"match-batch-r1/" + QueryProgress}, fake.queried)
		assert.Equal(t, BatchStatusMatching, progress.Status)
		assert.Equal(t, 4, progress.ChunksTotal)
		assert.Equal(t, 1, progress.ChunksCompleted)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		fake := &fakeWorkflowClient{queryErr: serviceerror.NewNotFound("no such workflow")}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})

		_, err := mc.BatchProgress(context.Background(), "match-batch-x")
		assert.True(t, IsWorkflowNotFound(err))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("undecodable result", func(t *testing.T) {
		fake := &fakeWorkflowClient{query: jsonValue{raw: []byte(`"not an object"`)}}
		mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})

		_, err := mc.BatchProgress(context.Background(), "match-batch-x")
		assert.ErrorIs(t, err, ErrQueryFailed)
	})
}

func TestMatchingClient_StopBatch(t *testing.T) {
	fake := &fakeWorkflowClient{}
	mc := newMatchingClient(fake, ClientConfig{TaskQueue: "q"})

	require.NoError(t, mc.StopBatch(context.Background(), "match-batch-r1", "maintenance"))
	assert.Equal(t, []string{"match-batch-r1/stop/maintenance"}, fake.signals)

	fake.signalErr = serviceerror.NewNotFound("workflow completed")
	err := mc.StopBatch(context.Background(), "match-batch-r1", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMatchingClient_Health(t *testing.T) {
	fake := &fakeWorkflowClient{}
	mc := newMatchingClient(fake, ClientConfig{})
	assert.Equal(t, DefaultHealthCheckTimeout, mc.healthCheckTimeout)
	require.NoError(t, mc.Health(context.Background()))

	fake.healthErr = serviceerror.NewUnavailable("down")
	assert.ErrorIs(t, mc.Health(context.Background()), ErrConnectionFailed)
}
