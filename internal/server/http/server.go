// Package httpserver provides the HTTP REST API of the author matching service.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/author-matching-service/internal/config"
	"github.com/helixir/author-matching-service/internal/database"
	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/enrichment"
	"github.com/helixir/author-matching-service/internal/matching"
	"github.com/helixir/author-matching-service/internal/observability"
	"github.com/helixir/author-matching-service/internal/repository"
	"github.com/helixir/author-matching-service/internal/temporal"
)

// Matcher runs the matching pipeline. *service.MatchService implements it.
type Matcher interface {
	MatchAdHoc(ctx context.Context, ref domain.RawPublicationRef) (*matching.Result, error)
	MatchStored(ctx context.Context, runID uuid.UUID, publicationID int64) (*matching.Result, error)
}

// PublicationStore is the subset of the publication repository the API uses.
type PublicationStore interface {
	Create(ctx context.Context, pub *domain.Publication) (*domain.Publication, error)
	Get(ctx context.Context, id int64) (*domain.Publication, error)
}

// DecisionStore is the subset of the decision repository the API uses.
type DecisionStore interface {
	ListByPublication(ctx context.Context, publicationID int64) ([]*domain.StoredDecision, error)
	List(ctx context.Context, filter repository.DecisionFilter) ([]*domain.StoredDecision, int64, error)
	Review(ctx context.Context, id uuid.UUID, accepted bool, reviewer string) (*domain.StoredDecision, error)
}

// WorkflowClient starts and inspects matching workflows.
// *temporal.MatchingClient implements it.
type WorkflowClient interface {
	StartBatch(ctx context.Context, input temporal.BatchMatchingInput) (*temporal.WorkflowHandle, error)
	StartPublicationMatch(ctx context.Context, publicationID int64) (string, error)
	BatchProgress(ctx context.Context, workflowID string) (*temporal.BatchProgress, error)
	StopBatch(ctx context.Context, workflowID, reason string) error
	Health(ctx context.Context) error
}

// Enricher links ORCIDs and maintains name variations.
// *enrichment.Service implements it.
type Enricher interface {
	LinkORCID(ctx context.Context, orcid string) (*enrichment.LinkResult, error)
	RegenerateVariations(ctx context.Context, researcherID int64) ([]string, error)
}

// HealthChecker reports database health. *database.DB implements it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Deps holds the collaborators of the server. Workflows may be nil, in which
// case the batch endpoints answer 503.
type Deps struct {
	Matcher      Matcher
	Publications PublicationStore
	Decisions    DecisionStore
	Workflows    WorkflowClient
	Enricher     Enricher
	Health       HealthChecker
	Batch        config.BatchConfig
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
}

// Server is the HTTP REST API server.
type Server struct {
	router       chi.Router
	httpServer   *http.Server
	matcher      Matcher
	publications PublicationStore
	decisions    DecisionStore
	workflows    WorkflowClient
	enricher     Enricher
	health       HealthChecker
	batch        config.BatchConfig
	metrics      *observability.Metrics
	validate     *validator.Validate
	logger       zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		matcher:      deps.Matcher,
		publications: deps.Publications,
		decisions:    deps.Decisions,
		workflows:    deps.Workflows,
		enricher:     deps.Enricher,
		health:       deps.Health,
		batch:        deps.Batch,
		metrics:      deps.Metrics,
		validate:     newValidator(),
		logger:       deps.Logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(jsonContentTypeMiddleware)

	r.Get("/health", s.healthHandler)
	r.Get("/ready", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/matches", s.matchAdHoc)

		r.Post("/publications", s.createPublication)
		r.Get("/publications/{id}", s.getPublication)
		r.Post("/publications/{id}/match", s.matchPublication)
		r.Get("/publications/{id}/decisions", s.listPublicationDecisions)

		r.Get("/decisions", s.listDecisions)
		r.Post("/decisions/{id}/review", s.reviewDecision)

		r.Post("/batches", s.startBatch)
		r.Get("/batches/{workflowID}", s.getBatchProgress)
		r.Delete("/batches/{workflowID}", s.stopBatch)

		r.Post("/researchers/{id}/variations", s.regenerateVariations)
		r.Post("/orcid-links", s.linkORCID)
	})

	return r
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether the database and, when configured,
// Temporal are reachable.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ready"}
	status := http.StatusOK

	if s.health != nil {
		h := s.health.Health(r.Context())
		resp["database"] = h.Status
		if !h.Healthy() {
			status = http.StatusServiceUnavailable
			resp["database_error"] = h.Error
		}
	}
	if s.workflows != nil {
		resp["temporal"] = "healthy"
		if err := s.workflows.Health(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			resp["temporal"] = "unhealthy"
		}
	}

	if status != http.StatusOK {
		resp["status"] = "not_ready"
	}
	writeJSON(w, status, resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
