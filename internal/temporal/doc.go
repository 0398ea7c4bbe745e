// Package temporal integrates the author matching service with Temporal.
//
// It holds the client wrapper used by the HTTP server and the Kafka
// listener to start and query matching workflows, the worker lifecycle, and
// the input and progress types shared with the workflows package.
//
// Workflows are started by name, so callers of MatchingClient never import
// workflow code:
//
//	handle, err := mc.StartBatch(ctx, temporal.BatchMatchingInput{Limit: 500})
//	progress, err := mc.BatchProgress(ctx, handle.WorkflowID)
//
// Errors returned by the client are *TemporalError values. They match the
// package sentinels with errors.Is and, for the not-found, already-started,
// invalid-argument and unavailable kinds, the domain sentinels as well.
package temporal
