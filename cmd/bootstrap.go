package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tariff-service/internal/config"
	"tariff-service/internal/database/minio"
	"tariff-service/internal/database/postgres"
	"tariff-service/internal/database/redis"
	"tariff-service/internal/event"
	"tariff-service/internal/repository"
	"tariff-service/internal/services"

	"github.com/jmoiron/sqlx"
)

// dependencies holds every long-lived resource. close releases them in
// reverse order of acquisition.
type dependencies struct {
	db            *sqlx.DB
	tariffCache   *redis.TariffCache
	sink          *event.BatchSink
	tariffService *services.TariffService
	rateService   *services.RateService
}

func bootstrap(ctx context.Context, cfg *config.TariffServiceConfig) (*dependencies, error) {
	deps := &dependencies{}

	db, err := postgres.ConnectWithRetry(ctx, cfg.PostgresCfg)
	if err != nil {
		return nil, err
	}
	deps.db = db

	var cache services.TariffCache
	if cfg.RedisCfg.Enabled {
		tc, err := redis.NewTariffCache(cfg.RedisCfg)
		if err != nil {
			// lookups fall back to the store
			slog.Warn("redis unavailable, tariff cache disabled", "error", err)
		} else {
			deps.tariffCache = tc
			cache = tc
		}
	}

	var archive services.UploadArchive
	if cfg.MinioCfg.Enabled {
		mc, err := minio.NewMinioClient(ctx, cfg.MinioCfg)
		if err != nil {
			slog.Warn("minio unavailable, uploads will not be archived", "error", err)
		} else {
			archive = mc
		}
	}

	producer, err := event.NewProducer(cfg)
	if err != nil {
		deps.close(ctx)
		return nil, err
	}
	sink := event.NewBatchSink(producer, cfg.KafkaCfg.Topic, cfg.KafkaCfg.BatchSize)
	if err := sink.Start(ctx); err != nil {
		deps.close(ctx)
		return nil, fmt.Errorf("failed to start event sink: %w", err)
	}
	deps.sink = sink

	deps.tariffService = services.NewTariffService(repository.NewTariffRepository(db), sink, cache, archive)
	deps.rateService = services.NewRateService(repository.NewRateRepository(db), archive)
	return deps, nil
}

func (d *dependencies) close(ctx context.Context) {
	if d.sink != nil {
		if err := d.sink.Stop(ctx); err != nil && !errors.Is(err, event.ErrNotStarted) {
			slog.Error("event sink stopped with errors", "error", err)
		}
	}
	if d.tariffCache != nil {
		if err := d.tariffCache.Close(); err != nil {
			slog.Error("failed to close redis", "error", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}
}
