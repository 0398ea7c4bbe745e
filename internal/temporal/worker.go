package temporal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// TaskQueue is the name of the task queue to poll.
	TaskQueue string

	// MaxConcurrentActivityExecutionSize bounds MatchChunk and the other
	// activities running at once. Every chunk drives its own resolver calls,
	// so this stays well below the SDK default. Default: 20
	MaxConcurrentActivityExecutionSize int

	// MaxConcurrentWorkflowTaskExecutionSize defaults to 10.
	MaxConcurrentWorkflowTaskExecutionSize int
}

// DefaultWorkerConfig returns a WorkerConfig with default values.
func DefaultWorkerConfig(taskQueue string) WorkerConfig {
	return WorkerConfig{
		TaskQueue:                              taskQueue,
		MaxConcurrentActivityExecutionSize:     20,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	}
}

func workerOptionsFromConfig(cfg WorkerConfig) worker.Options {
	defaults := DefaultWorkerConfig(cfg.TaskQueue)
	if cfg.MaxConcurrentActivityExecutionSize <= 0 {
		cfg.MaxConcurrentActivityExecutionSize = defaults.MaxConcurrentActivityExecutionSize
	}
	if cfg.MaxConcurrentWorkflowTaskExecutionSize <= 0 {
		cfg.MaxConcurrentWorkflowTaskExecutionSize = defaults.MaxConcurrentWorkflowTaskExecutionSize
	}
	return worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.MaxConcurrentActivityExecutionSize,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.MaxConcurrentWorkflowTaskExecutionSize,
	}
}

// WorkerManager owns a Temporal worker and what is registered on it.
type WorkerManager struct {
	worker     worker.Worker
	taskQueue  string
	workflows  []string
	activities []interface{}
	logger     zerolog.Logger
}

// NewWorkerManager creates a worker polling cfg.TaskQueue.
func NewWorkerManager(c client.Client, cfg WorkerConfig, logger zerolog.Logger) (*WorkerManager, error) {
	if cfg.TaskQueue == "" {
		return nil, fmt.Errorf("task queue is required")
	}

	return &WorkerManager{
		worker:    worker.New(c, cfg.TaskQueue, workerOptionsFromConfig(cfg)),
		taskQueue: cfg.TaskQueue,
		logger:    logger.With().Str("component", "temporal_worker").Str("task_queue", cfg.TaskQueue).Logger(),
	}, nil
}

// RegisterWorkflow registers fn under name, the name clients start it by.
func (m *WorkerManager) RegisterWorkflow(fn interface{}, name string) {
	m.worker.RegisterWorkflowWithOptions(fn, workflow.RegisterOptions{Name: name})
	m.workflows = append(m.workflows, name)
}

// RegisterActivity registers an activity function or a struct whose
// exported methods are activities.
func (m *WorkerManager) RegisterActivity(activity interface{}) {
	m.worker.RegisterActivity(activity)
	m.activities = append(m.activities, activity)
}

// Workflows returns the registered workflow names.
func (m *WorkerManager) Workflows() []string {
	return append([]string(nil), m.workflows...)
}

// TaskQueue returns the configured task queue name.
func (m *WorkerManager) TaskQueue() string {
	return m.taskQueue
}

// Run starts the worker and blocks until ctx is cancelled, then stops it.
func (m *WorkerManager) Run(ctx context.Context) error {
	if err := m.worker.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	m.logger.Info().Strs("workflows", m.workflows).Int("activity_sets", len(m.activities)).Msg("worker started")

	<-ctx.Done()
	m.worker.Stop()
	m.logger.Info().Msg("worker stopped")
	return nil
}
