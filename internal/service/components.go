package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/author-matching-service/internal/config"
	"github.com/helixir/author-matching-service/internal/enrichment"
	"github.com/helixir/author-matching-service/internal/events"
	"github.com/helixir/author-matching-service/internal/matching"
	"github.com/helixir/author-matching-service/internal/observability"
	"github.com/helixir/author-matching-service/internal/papersources/openalex"
	"github.com/helixir/author-matching-service/internal/repository"
)

// Components is the object graph shared by the server, the worker and matchctl.
type Components struct {
	Researchers  *repository.PgResearcherRepository
	Publications *repository.PgPublicationRepository
	Decisions    *repository.PgDecisionRepository
	OpenAlex     *openalex.Client
	Pipeline     *matching.Pipeline
	Matcher      *MatchService
	Enrichment   *enrichment.Service
}

// NewComponents builds repositories on db, the OpenAlex client, the pipeline,
// the match service and the enrichment service from cfg. publisher may be nil.
func NewComponents(cfg *config.Config, db repository.DBTX, publisher events.Publisher, metrics *observability.Metrics, logger zerolog.Logger) (*Components, error) {
	if err := cfg.Matching.Validate(); err != nil {
		return nil, fmt.Errorf("matching config: %w", err)
	}

	c := &Components{
		Researchers:  repository.NewPgResearcherRepository(db),
		Publications: repository.NewPgPublicationRepository(db),
		Decisions:    repository.NewPgDecisionRepository(db),
		OpenAlex: openalex.New(openalex.Config{
			BaseURL:   cfg.OpenAlex.BaseURL,
			Email:     cfg.OpenAlex.Email,
			APIKey:    cfg.OpenAlex.APIKey,
			Timeout:   cfg.OpenAlex.Timeout,
			RateLimit: cfg.OpenAlex.RateLimit,
			BurstSize: cfg.OpenAlex.BurstSize,
		}),
	}
	c.Pipeline = matching.NewPipeline(cfg.Matching, c.OpenAlex, logger, metrics)

	matcher, err := NewMatchService(Deps{
		Pipeline:     c.Pipeline,
		Researchers:  c.Researchers,
		Publications: c.Publications,
		Decisions:    c.Decisions,
		Publisher:    publisher,
		Metrics:      metrics,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	c.Matcher = matcher
	c.Enrichment = enrichment.NewService(c.Researchers, c.OpenAlex, cfg.Enrichment.Threshold, metrics, logger)
	return c, nil
}

// NewPublisher returns a Kafka publisher when Kafka is enabled and a
// NoopPublisher otherwise.
func NewPublisher(cfg config.KafkaConfig, metrics *observability.Metrics, logger zerolog.Logger) events.Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return events.NoopPublisher{}
	}
	return events.NewKafkaPublisher(events.PublisherConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}, metrics, logger)
}
