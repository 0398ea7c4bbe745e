package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/author-matching-service/internal/observability"
	"github.com/helixir/author-matching-service/internal/temporal"
)

type startBatchRequest struct {
	Limit          int `json:"limit,omitempty" validate:"min=0,max=100000"`
	ChunkSize      int `json:"chunk_size,omitempty" validate:"min=0,max=1000"`
	MaxConcurrency int `json:"max_concurrency,omitempty" validate:"min=0,max=64"`
}

type stopBatchRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type linkORCIDRequest struct {
	ORCID string `json:"orcid" validate:"required,max=64"`
}

// startBatch handles POST /batches. Zero fields take the configured batch defaults.
func (s *Server) startBatch(w http.ResponseWriter, r *http.Request) {
	if s.workflows == nil {
		writeError(w, http.StatusServiceUnavailable, "batch matching is not available")
		return
	}
	var req startBatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	input := temporal.BatchMatchingInput{
		RunID:          uuid.New(),
		Limit:          firstPositive(req.Limit, s.batch.DefaultLimit),
		ChunkSize:      firstPositive(req.ChunkSize, s.batch.ChunkSize),
		MaxConcurrency: firstPositive(req.MaxConcurrency, s.batch.MaxConcurrency),
	}
	handle, err := s.workflows.StartBatch(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	observability.LoggerFromContext(r.Context(), s.logger).Info().
		Str("workflow_id", handle.WorkflowID).
		Str("run_id", input.RunID.String()).
		Int("limit", input.Limit).
		Msg("batch matching started")
	writeJSON(w, http.StatusAccepted, startBatchResponse{
		WorkflowID: handle.WorkflowID,
		RunID:      input.RunID.String(),
		Limit:      input.Limit,
	})
}

// getBatchProgress handles GET /batches/{workflowID}.
func (s *Server) getBatchProgress(w http.ResponseWriter, r *http.Request) {
	if s.workflows == nil {
		writeError(w, http.StatusServiceUnavailable, "batch matching is not available")
		return
	}
	progress, err := s.workflows.BatchProgress(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// stopBatch handles DELETE /batches/{workflowID}. In-flight chunks finish;
// no new chunks are dispatched.
func (s *Server) stopBatch(w http.ResponseWriter, r *http.Request) {
	if s.workflows == nil {
		writeError(w, http.StatusServiceUnavailable, "batch matching is not available")
		return
	}
	workflowID := chi.URLParam(r, "workflowID")
	var req stopBatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "stopped via API"
	}

	if err := s.workflows.StopBatch(r.Context(), workflowID, reason); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, stopBatchResponse{WorkflowID: workflowID, Status: "stopping"})
}

// regenerateVariations handles POST /researchers/{id}/variations.
func (s *Server) regenerateVariations(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInt64Param(w, r, "id")
	if !ok {
		return
	}
	variations, err := s.enricher.RegenerateVariations(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, variationsResponse{ResearcherID: id, Variations: variations})
}

// linkORCID handles POST /orcid-links.
func (s *Server) linkORCID(w http.ResponseWriter, r *http.Request) {
	var req linkORCIDRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	result, err := s.enricher.LinkORCID(r.Context(), strings.TrimSpace(req.ORCID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
