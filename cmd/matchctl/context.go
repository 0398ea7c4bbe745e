package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/helixir/author-matching-service/internal/config"
	"github.com/helixir/author-matching-service/internal/database"
	"github.com/helixir/author-matching-service/internal/events"
	"github.com/helixir/author-matching-service/internal/observability"
	"github.com/helixir/author-matching-service/internal/service"
	"github.com/helixir/author-matching-service/internal/temporal"
)

// commandContext lazily builds what a subcommand needs so that commands which
// only talk to Temporal never open a database connection.
type commandContext struct {
	logLevel *string

	configOnce sync.Once
	config     *config.Config
	logger     zerolog.Logger
	configErr  error

	mu         sync.Mutex
	db         *database.DB
	publisher  events.Publisher
	components *service.Components
	temporal   *temporal.MatchingClient
}

func newCommandContext(logLevel *string) *commandContext {
	return &commandContext{logLevel: logLevel}
}

func (c *commandContext) ensureConfig() (*config.Config, zerolog.Logger, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		level := cfg.Logging.Level
		if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
			level = strings.TrimSpace(*c.logLevel)
		}
		c.config = cfg
		c.logger = observability.NewLogger(observability.LoggingConfig{
			Level:      level,
			Format:     "console",
			Output:     "stderr",
			TimeFormat: cfg.Logging.TimeFormat,
		}).With().Str("component", "matchctl").Logger()
	})
	return c.config, c.logger, c.configErr
}

// ensureComponents connects to the database and builds the service graph.
func (c *commandContext) ensureComponents(ctx context.Context) (*service.Components, error) {
	cfg, logger, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.components != nil {
		return c.components, nil
	}

	db, err := c.connectLocked(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	publisher := service.NewPublisher(cfg.Kafka, nil, logger)

	components, err := service.NewComponents(cfg, db, publisher, nil, logger)
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("build services: %w", err)
	}

	c.publisher = publisher
	c.components = components
	return components, nil
}

// ensureDB connects to the database without building the service graph.
func (c *commandContext) ensureDB(ctx context.Context) (*database.DB, error) {
	cfg, logger, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx, cfg, logger)
}

func (c *commandContext) connectLocked(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*database.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	c.db = db
	return db, nil
}

func (c *commandContext) ensureTemporal() (*temporal.MatchingClient, error) {
	cfg, logger, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.temporal != nil {
		return c.temporal, nil
	}

	tc, err := temporal.NewClient(temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to temporal: %w", err)
	}
	c.temporal = temporal.NewMatchingClient(tc, temporal.ClientConfig{TaskQueue: cfg.Temporal.TaskQueue})
	return c.temporal, nil
}

func (c *commandContext) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.temporal != nil {
		c.temporal.Close()
		c.temporal = nil
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close event publisher")
		}
		c.publisher = nil
	}
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
	c.components = nil
}
