package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/observability"
	"github.com/helixir/author-matching-service/internal/repository"
	"github.com/helixir/author-matching-service/internal/temporal"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// matchRequest is the JSON body of ad-hoc match and publication create requests.
type matchRequest struct {
	Title           string `json:"title,omitempty" validate:"max=1000"`
	URLOrDOI        string `json:"url_or_doi" validate:"required_without=FreeTextAuthors,max=2048"`
	FreeTextAuthors string `json:"free_text_authors,omitempty" validate:"max=10000"`
}

type createPublicationRequest struct {
	matchRequest
	// Match starts the single-publication workflow after the insert.
	Match bool `json:"match,omitempty"`
}

type reviewRequest struct {
	Accepted *bool  `json:"accepted" validate:"required"`
	Reviewer string `json:"reviewer" validate:"required,max=200"`
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads, decodes and validates a request body into dst. It writes
// a 400 response and returns false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeDomainError(w, validationError(err))
		return false
	}
	return true
}

// validationError converts the first validator failure into a domain.ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("body", "invalid request")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(fe.Field(), "is required")
	case "required_without":
		return domain.NewValidationError(fe.Field(), "either url_or_doi or free_text_authors is required")
	case "max":
		return domain.NewValidationError(fe.Field(), fmt.Sprintf("must be at most %s", fe.Param()))
	case "min":
		return domain.NewValidationError(fe.Field(), fmt.Sprintf("must be at least %s", fe.Param()))
	default:
		return domain.NewValidationError(fe.Field(), "is invalid")
	}
}

// matchAdHoc handles POST /matches.
func (s *Server) matchAdHoc(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.matcher.MatchAdHoc(r.Context(), domain.RawPublicationRef{
		Title:           strings.TrimSpace(req.Title),
		URLOrDOI:        strings.TrimSpace(req.URLOrDOI),
		FreeTextAuthors: strings.TrimSpace(req.FreeTextAuthors),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// createPublication handles POST /publications.
func (s *Server) createPublication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createPublicationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	pub, err := s.publications.Create(ctx, &domain.Publication{
		Title:           strings.TrimSpace(req.Title),
		URLOrDOI:        strings.TrimSpace(req.URLOrDOI),
		FreeTextAuthors: strings.TrimSpace(req.FreeTextAuthors),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := createPublicationResponse{Publication: domainPublicationToResponse(pub)}
	if req.Match && s.workflows != nil {
		workflowID, err := s.workflows.StartPublicationMatch(ctx, pub.ID)
		if err != nil {
			// The publication stays pending and is picked up by the next batch.
			observability.LoggerFromContext(ctx, s.logger).Warn().Err(err).
				Int64("publication_id", pub.ID).
				Msg("failed to start publication match workflow")
		} else {
			resp.WorkflowID = workflowID
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// getPublication handles GET /publications/{id}.
func (s *Server) getPublication(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInt64Param(w, r, "id")
	if !ok {
		return
	}
	pub, err := s.publications.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainPublicationToResponse(pub))
}

// matchPublication handles POST /publications/{id}/match. The match runs
// synchronously under a fresh run id and its decisions are persisted.
func (s *Server) matchPublication(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInt64Param(w, r, "id")
	if !ok {
		return
	}
	result, err := s.matcher.MatchStored(r.Context(), uuid.New(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// listPublicationDecisions handles GET /publications/{id}/decisions.
func (s *Server) listPublicationDecisions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInt64Param(w, r, "id")
	if !ok {
		return
	}
	decisions, err := s.decisions.ListByPublication(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"publication_id": id,
		"decisions":      domainDecisionsToResponse(decisions),
	})
}

// listDecisions handles GET /decisions, the review queue.
func (s *Server) listDecisions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.DecisionFilter{
		Tier:         domain.ActionTier(strings.ToUpper(q.Get("tier"))),
		ReviewStatus: domain.ReviewStatus(strings.ToLower(q.Get("review_status"))),
	}
	if v := q.Get("run_id"); v != "" {
		runID, ok := parseUUID(w, v, "run_id")
		if !ok {
			return
		}
		filter.RunID = runID
	}
	var ok bool
	if filter.Limit, ok = parseIntQuery(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = parseIntQuery(w, r, "offset"); !ok {
		return
	}
	if err := filter.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	decisions, total, err := s.decisions.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listDecisionsResponse{
		Decisions:  domainDecisionsToResponse(decisions),
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// reviewDecision handles POST /decisions/{id}/review.
func (s *Server) reviewDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "id"), "decision id")
	if !ok {
		return
	}
	var req reviewRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	decision, err := s.decisions.Review(r.Context(), id, *req.Accepted, strings.TrimSpace(req.Reviewer))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.metrics.RecordReview(string(decision.ReviewStatus))
	observability.LoggerFromContext(r.Context(), s.logger).Info().
		Str("decision_id", id.String()).
		Str("review_status", string(decision.ReviewStatus)).
		Str("reviewer", decision.ReviewedBy).
		Msg("decision reviewed")
	writeJSON(w, http.StatusOK, domainDecisionToResponse(decision))
}

// writeDomainError maps domain and temporal errors to HTTP status codes
// and writes a JSON error response.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, temporal.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeError(w, http.StatusConflict, "workflow already started")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrReviewClosed):
		writeError(w, http.StatusConflict, "decision already reviewed")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parseInt64Param parses a positive integer URL parameter.
func parseInt64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: must be a positive integer", name))
		return 0, false
	}
	return id, true
}

// parseIntQuery parses an optional non-negative integer query parameter.
// A missing parameter yields 0.
func parseIntQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: must be a non-negative integer", name))
		return 0, false
	}
	return n, true
}
