// Package main provides the entry point for the author matching Temporal worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/author-matching-service/internal/config"
	"github.com/helixir/author-matching-service/internal/database"
	"github.com/helixir/author-matching-service/internal/events"
	"github.com/helixir/author-matching-service/internal/observability"
	"github.com/helixir/author-matching-service/internal/service"
	"github.com/helixir/author-matching-service/internal/temporal"
	"github.com/helixir/author-matching-service/internal/temporal/activities"
	"github.com/helixir/author-matching-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("author-matching-service worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	publisher := service.NewPublisher(cfg.Kafka, metrics, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	components, err := service.NewComponents(cfg, db, publisher, metrics, logger)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	temporalClient, err := temporal.NewClient(temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	manager, err := temporal.NewWorkerManager(temporalClient, temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue), logger)
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}
	manager.RegisterWorkflow(workflows.BatchMatchingWorkflow, temporal.BatchMatchingWorkflowName)
	manager.RegisterWorkflow(workflows.MatchPublicationWorkflow, temporal.MatchPublicationWorkflowName)
	manager.RegisterActivity(activities.NewMatchingActivities(components.Matcher, components.Publications))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return manager.Run(gctx)
	})

	// The publication listener starts a single-publication workflow for every
	// publication.registered event.
	if cfg.Kafka.Enabled && cfg.Kafka.PublicationsTopic != "" && len(cfg.Kafka.Brokers) > 0 {
		matchingClient := temporal.NewMatchingClient(temporalClient, temporal.ClientConfig{TaskQueue: cfg.Temporal.TaskQueue})
		listener := events.NewPublicationListener(events.ListenerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.PublicationsTopic,
			GroupID: cfg.Kafka.GroupID,
		}, matchingClient, logger)
		defer func() {
			if err := listener.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close publication listener")
			}
		}()

		g.Go(func() error {
			if err := listener.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("publication listener: %w", err)
			}
			return nil
		})
		logger.Info().Str("topic", cfg.Kafka.PublicationsTopic).Msg("publication listener started")
	}

	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer := &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		g.Go(func() error {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info().
		Str("task_queue", manager.TaskQueue()).
		Strs("workflows", manager.Workflows()).
		Msg("author-matching-service worker is ready")

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("worker stopped")
	return nil
}
