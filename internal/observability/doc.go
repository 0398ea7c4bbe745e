// Package observability provides logging, metrics and context helpers for the
// author matching service.
//
// # Logging
//
//	logger := observability.NewLogger(observability.LoggingConfig{Level: "info", Format: "json"})
//	logger = observability.WithPublicationContext(logger, pubID, doi)
//	logger.Info().Str("tier", "MANUAL_REVIEW").Msg("decision recorded")
//
// Loggers travel through request and activity contexts:
//
//	ctx = observability.WithRequestID(ctx, reqID)
//	ctx = observability.WithLogger(ctx, logger)
//	log := observability.LoggerFromContext(ctx, fallback)
//
// # Metrics
//
//	metrics := observability.NewMetrics("author_matching")
//	metrics.RecordDecision("AUTO_ASSIGN", "identifier_exact", 1.0)
//
// Standard log fields: request_id, correlation_id, run_id, publication_id,
// doi, researcher_id, tier, method, workflow_id.
package observability
