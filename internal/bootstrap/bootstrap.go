// Package bootstrap builds the summary service and whichever collaborators
// the configuration enables.
package bootstrap

import (
	"context"
	"fmt"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/cache"
	"checkin-platform/internal/config"
	"checkin-platform/internal/notify"
	"checkin-platform/internal/repository"
	"checkin-platform/internal/services"
	"checkin-platform/internal/storage"
	"checkin-platform/pkg/database"
	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

// Components holds the wired service and the resources to release on exit
type Components struct {
	Service *services.SummaryService
	closers []func() error
	logger  *logging.StructuredLogger
}

// Build connects the enabled collaborators and creates the summary service.
// On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*Components, error) {
	c := &Components{logger: logger}

	aggCfg, err := cfg.AggregationConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid measures config: %w", err)
	}
	aggregator, err := aggregation.NewAggregator(aggCfg, logger)
	if err != nil {
		return nil, err
	}

	var deps services.Dependencies

	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(cfg.PostgresConfig(), logger, metricsCollector)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		deps.Repository = repository.NewSummaryRepository(db, logger, metricsCollector)
	}

	if cfg.Storage.Enabled {
		store, err := storage.NewMinioArtifactStore(storage.Options{
			Endpoint:      cfg.Storage.Endpoint,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			Region:        cfg.Storage.Region,
			UseSSL:        cfg.Storage.UseSSL,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			OwnerSecret:   cfg.Storage.OwnerSecret,
		}, logger, metricsCollector)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize artifact storage: %w", err)
		}
		deps.Artifacts = store
	}

	if cfg.Cache.Enabled {
		resultCache, err := cache.NewRedisResultCache(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL, logger, metricsCollector)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		c.closers = append(c.closers, resultCache.Close)
		deps.Cache = resultCache
	}

	if cfg.Telegram.Enabled {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Weeks, cfg.Telegram.MaxRetries, logger, metricsCollector)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize telegram: %w", err)
		}
		deps.Notifier = notifier
	}

	loader := services.NewExportLoader(cfg.Ingest, logger, metricsCollector)
	c.Service = services.NewSummaryService(aggregator, loader, deps, cfg.Ingest.Parallelism, logger, metricsCollector)

	logger.Info(ctx, "[BOOTSTRAP] Summary service ready", logging.Fields{
		"database": cfg.Database.Enabled,
		"storage":  cfg.Storage.Enabled,
		"cache":    cfg.Cache.Enabled,
		"telegram": cfg.Telegram.Enabled,
	})

	return c, nil
}

// Close releases connections in reverse order of opening
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Error(context.Background(), "[SHUTDOWN_ERROR] Failed to close resource", logging.Fields{}, err)
		}
	}
	c.closers = nil
}
