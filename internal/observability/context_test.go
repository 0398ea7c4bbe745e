package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, CorrelationIDFromContext(ctx))
	assert.Empty(t, RunIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-123")
	ctx = WithCorrelationID(ctx, "corr-1")
	ctx = WithRunID(ctx, "run-7")
	ctx = WithWorkflow(ctx, "wf-1", "wfr-1")

	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
	assert.Equal(t, "run-7", RunIDFromContext(ctx))

	wfID, wfRun := WorkflowFromContext(ctx)
	assert.Equal(t, "wf-1", wfID)
	assert.Equal(t, "wfr-1", wfRun)
}

func TestLoggerFromContext(t *testing.T) {
	t.Run("falls back when absent", func(t *testing.T) {
		var buf bytes.Buffer
		fallback := zerolog.New(&buf)

		LoggerFromContext(context.Background(), fallback).Info().Msg("fallback")
		assert.Contains(t, buf.String(), "fallback")
	})

	t.Run("stored logger carries context ids", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithRequestID(context.Background(), "req-9")
		ctx = WithRunID(ctx, "run-9")
		ctx = WithLogger(ctx, zerolog.New(&buf))

		LoggerFromContext(ctx, zerolog.Nop()).Info().Msg("stored")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "req-9", entry["request_id"])
		assert.Equal(t, "run-9", entry["run_id"])
		assert.NotContains(t, entry, "correlation_id")
	})
}
