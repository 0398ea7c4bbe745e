package temporal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/observability"
)

// Workflow and query names. They live here rather than in the workflows
// package so the HTTP server and the Kafka listener can start and query
// workflows without importing workflow code.
const (
	BatchMatchingWorkflowName    = "BatchMatchingWorkflow"
	MatchPublicationWorkflowName = "MatchPublicationWorkflow"

	// QueryProgress is the query name used to retrieve batch progress.
	QueryProgress = "progress"

	// SignalStop asks a batch to stop dispatching chunks. Chunks already
	// running finish and the partial summary is still published.
	SignalStop = "stop"
)

const (
	// DefaultBatchExecutionTimeout bounds one batch matching run.
	DefaultBatchExecutionTimeout = 2 * time.Hour

	// DefaultPublicationExecutionTimeout bounds a single-publication run.
	DefaultPublicationExecutionTimeout = 15 * time.Minute

	// DefaultHealthCheckTimeout is the timeout for Temporal server health checks.
	DefaultHealthCheckTimeout = 5 * time.Second
)

var (
	// ErrWorkflowNotFound indicates the workflow execution was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyStarted indicates a workflow with the same ID is already running.
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")

	// ErrQueryFailed indicates the workflow query failed.
	ErrQueryFailed = errors.New("query failed")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("client closed")

	// ErrConnectionFailed indicates a connection failure to the Temporal server.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNamespaceNotFound indicates the namespace does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDeadlineExceeded indicates the operation deadline was exceeded.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// TemporalError wraps a Temporal error with the operation and workflow it concerns.
type TemporalError struct {
	Op         string
	Kind       error
	WorkflowID string
	RunID      string
	Err        error
}

// Error returns the error message.
func (e *TemporalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflowID=%s", e.WorkflowID)
		if e.RunID != "" {
			msg += fmt.Sprintf(", runID=%s", e.RunID)
		}
		msg += "]"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TemporalError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error's Kind. Not-found and
// unavailable kinds also match the domain sentinels, so HTTP error mapping
// needs no knowledge of this package.
func (e *TemporalError) Is(target error) bool {
	if errors.Is(e.Kind, target) {
		return true
	}
	switch e.Kind {
	case ErrWorkflowNotFound:
		return target == domain.ErrNotFound
	case ErrWorkflowAlreadyStarted:
		return target == domain.ErrAlreadyExists
	case ErrInvalidArgument:
		return target == domain.ErrInvalidInput
	case ErrConnectionFailed, ErrClientClosed:
		return target == domain.ErrServiceUnavailable
	}
	return false
}

// wrapTemporalError converts a Temporal SDK error to a TemporalError.
func wrapTemporalError(op string, err error, workflowID, runID string) error {
	if err == nil {
		return nil
	}

	te := &TemporalError{
		Op:         op,
		WorkflowID: workflowID,
		RunID:      runID,
		Err:        err,
	}

	var (
		notFoundErr          *serviceerror.NotFound
		alreadyStartedErr    *serviceerror.WorkflowExecutionAlreadyStarted
		namespaceNotFoundErr *serviceerror.NamespaceNotFound
		invalidArgumentErr   *serviceerror.InvalidArgument
		deadlineExceededErr  *serviceerror.DeadlineExceeded
		queryFailedErr       *serviceerror.QueryFailed
	)

	switch {
	case errors.As(err, &notFoundErr):
		te.Kind = ErrWorkflowNotFound
	case errors.As(err, &alreadyStartedErr):
		te.Kind = ErrWorkflowAlreadyStarted
	case errors.As(err, &namespaceNotFoundErr):
		te.Kind = ErrNamespaceNotFound
	case errors.As(err, &invalidArgumentErr):
		te.Kind = ErrInvalidArgument
	case errors.As(err, &deadlineExceededErr), errors.Is(err, context.DeadlineExceeded):
		te.Kind = ErrDeadlineExceeded
	case errors.As(err, &queryFailedErr):
		te.Kind = ErrQueryFailed
	case errors.Is(err, context.Canceled):
		te.Kind = ErrClientClosed
	default:
		te.Kind = ErrConnectionFailed
	}

	return te
}

// IsWorkflowNotFound checks if the error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowAlreadyStarted checks if the error indicates a workflow already started.
func IsWorkflowAlreadyStarted(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyStarted)
}

// ClientConfig contains configuration for the Temporal client.
type ClientConfig struct {
	// HostPort is the Temporal server address (e.g., "localhost:7233").
	HostPort string

	// Namespace is the Temporal namespace to use.
	Namespace string

	// TaskQueue is the task queue matching workflows are started on.
	TaskQueue string

	// HealthCheckTimeout defaults to DefaultHealthCheckTimeout.
	HealthCheckTimeout time.Duration
}

// NewClient dials the Temporal server. SDK logs go through logger.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}
	return c, nil
}

// BatchMatchingInput starts a batch matching run.
type BatchMatchingInput struct {
	// RunID tags every decision the batch writes.
	RunID uuid.UUID

	// Limit is the maximum number of pending publications to take.
	Limit int

	// ChunkSize is the number of publications per MatchChunk activity.
	ChunkSize int

	// MaxConcurrency bounds the MatchChunk activities in flight.
	MaxConcurrency int
}

// MatchPublicationInput starts a single-publication run.
type MatchPublicationInput struct {
	RunID         uuid.UUID
	PublicationID int64
}

// BatchProgress is the answer to the progress query of a batch workflow.
type BatchProgress struct {
	RunID           string               `json:"run_id"`
	Status          string               `json:"status"`
	Researchers     int                  `json:"researchers"`
	Publications    int                  `json:"publications"`
	ChunksTotal     int                  `json:"chunks_total"`
	ChunksCompleted int                  `json:"chunks_completed"`
	ChunksFailed    int                  `json:"chunks_failed"`
	Summary         *domain.BatchSummary `json:"summary,omitempty"`
}

// Batch progress states.
const (
	BatchStatusLoading   = "loading"
	BatchStatusMatching  = "matching"
	BatchStatusStopped   = "stopped"
	BatchStatusCompleted = "completed"
)

// StopSignal is the payload of SignalStop.
type StopSignal struct {
	Reason string `json:"reason"`
}

// WorkflowHandle identifies a started workflow execution.
type WorkflowHandle struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// workflowClient is the part of client.Client used by MatchingClient.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error)
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
	CheckHealth(ctx context.Context, request *client.CheckHealthRequest) (*client.CheckHealthResponse, error)
	Close()
}

// MatchingClient starts and queries matching workflows.
type MatchingClient struct {
	mu                 sync.RWMutex
	client             workflowClient
	taskQueue          string
	healthCheckTimeout time.Duration
	closed             bool
}

// NewMatchingClient wraps c for the task queue in cfg.
func NewMatchingClient(c client.Client, cfg ClientConfig) *MatchingClient {
	return newMatchingClient(c, cfg)
}

func newMatchingClient(c workflowClient, cfg ClientConfig) *MatchingClient {
	timeout := cfg.HealthCheckTimeout
	if timeout == 0 {
		timeout = DefaultHealthCheckTimeout
	}
	return &MatchingClient{
		client:             c,
		taskQueue:          cfg.TaskQueue,
		healthCheckTimeout: timeout,
	}
}

// Close closes the underlying Temporal client connection.
func (c *MatchingClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && !c.closed {
		c.client.Close()
		c.closed = true
	}
}

func (c *MatchingClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Health checks the connection to the Temporal server.
func (c *MatchingClient) Health(ctx context.Context) error {
	if c.isClosed() {
		return &TemporalError{Op: "Health", Kind: ErrClientClosed}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{}); err != nil {
		return wrapTemporalError("Health", err, "", "")
	}
	return nil
}

// BatchWorkflowID returns the workflow id of the batch with runID.
func BatchWorkflowID(runID uuid.UUID) string {
	return "match-batch-" + runID.String()
}

// PublicationWorkflowID returns the workflow id matching publicationID.
func PublicationWorkflowID(publicationID int64) string {
	return "match-publication-" + strconv.FormatInt(publicationID, 10)
}

// StartBatch starts a BatchMatchingWorkflow. A zero RunID is replaced by a
// fresh one.
func (c *MatchingClient) StartBatch(ctx context.Context, input BatchMatchingInput) (*WorkflowHandle, error) {
	if input.RunID == uuid.Nil {
		input.RunID = uuid.New()
	}
	workflowID := BatchWorkflowID(input.RunID)
	if c.isClosed() {
		return nil, &TemporalError{Op: "StartBatch", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultBatchExecutionTimeout,
	}, BatchMatchingWorkflowName, input)
	if err != nil {
		return nil, wrapTemporalError("StartBatch", err, workflowID, "")
	}
	return &WorkflowHandle{WorkflowID: workflowID, RunID: run.GetRunID()}, nil
}

// StartPublicationMatch starts a MatchPublicationWorkflow for publicationID
// and returns its workflow id. A run already in progress for the same
// publication is not an error.
func (c *MatchingClient) StartPublicationMatch(ctx context.Context, publicationID int64) (string, error) {
	workflowID := PublicationWorkflowID(publicationID)
	if publicationID <= 0 {
		return "", &TemporalError{Op: "StartPublicationMatch", Kind: ErrInvalidArgument, Err: fmt.Errorf("publication id must be positive")}
	}
	if c.isClosed() {
		return "", &TemporalError{Op: "StartPublicationMatch", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	_, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultPublicationExecutionTimeout,
	}, MatchPublicationWorkflowName, MatchPublicationInput{RunID: uuid.New(), PublicationID: publicationID})
	if err != nil {
		wrapped := wrapTemporalError("StartPublicationMatch", err, workflowID, "")
		if IsWorkflowAlreadyStarted(wrapped) {
			return workflowID, nil
		}
		return "", wrapped
	}
	return workflowID, nil
}

// BatchProgress queries the progress of a batch workflow.
func (c *MatchingClient) BatchProgress(ctx context.Context, workflowID string) (*BatchProgress, error) {
	if c.isClosed() {
		return nil, &TemporalError{Op: "BatchProgress", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	resp, err := c.client.QueryWorkflow(ctx, workflowID, "", QueryProgress)
	if err != nil {
		return nil, wrapTemporalError("BatchProgress", err, workflowID, "")
	}

	var progress BatchProgress
	if err := resp.Get(&progress); err != nil {
		return nil, &TemporalError{
			Op:         "BatchProgress",
			Kind:       ErrQueryFailed,
			WorkflowID: workflowID,
			Err:        fmt.Errorf("decode query result: %w", err),
		}
	}
	return &progress, nil
}

// StopBatch signals a running batch to stop after its in-flight chunks.
func (c *MatchingClient) StopBatch(ctx context.Context, workflowID, reason string) error {
	if c.isClosed() {
		return &TemporalError{Op: "StopBatch", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	if err := c.client.SignalWorkflow(ctx, workflowID, "", SignalStop, StopSignal{Reason: reason}); err != nil {
		return wrapTemporalError("StopBatch", err, workflowID, "")
	}
	return nil
}

// TaskQueue returns the configured task queue name.
func (c *MatchingClient) TaskQueue() string {
	return c.taskQueue
}
