package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/vehicle-crash-etl/internal/adapter/filesink"
	"github.com/couchcryptid/vehicle-crash-etl/internal/adapter/fueleconomy"
	"github.com/couchcryptid/vehicle-crash-etl/internal/adapter/kafka"
	"github.com/couchcryptid/vehicle-crash-etl/internal/adapter/portal"
	"github.com/couchcryptid/vehicle-crash-etl/internal/adapter/reference"
	"github.com/couchcryptid/vehicle-crash-etl/internal/adapter/warehouse"
	"github.com/couchcryptid/vehicle-crash-etl/internal/adapter/weather"
	"github.com/couchcryptid/vehicle-crash-etl/internal/config"
	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
	"github.com/couchcryptid/vehicle-crash-etl/internal/pipeline"
)

// app owns the wired pipeline and every resource that needs closing.
type app struct {
	pipeline *pipeline.Pipeline
	closers  []func() error
	logger   *slog.Logger
}

// newApp wires the adapters selected by cfg. The warehouse is opened when
// tables are loaded into it or when regular windows need its update log.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, regular bool) (*app, error) {
	a := &app{logger: logger}

	client := portal.NewClient(cfg.PortalBaseURL, portal.Credentials{
		AppToken: cfg.SotaToken,
		User:     cfg.SotaUser,
		Password: cfg.SotaPassword,
	}, cfg.HTTPTimeout, logger)
	source := portal.NewSource(client, portal.NewLocalStore(cfg.LocalDataDir), cfg.Retries, cfg.LocalFiles, logger, metrics)

	fetcher, err := a.weatherFetcher(ctx, cfg, logger, metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := pipeline.Deps{
		Crashes:  source,
		Vehicles: fueleconomy.NewClient(cfg.VehicleFeedURL, cfg.HTTPTimeout, cfg.Retries, logger, metrics),
		Weather: func(ctx context.Context, locations []domain.WeatherLocation, w domain.Window) ([]domain.WeatherSeries, error) {
			return weather.Collect(ctx, fetcher, locations, w)
		},
		Reference: reference.NewStore(cfg.StaticDir),
	}

	if !cfg.Debug || regular {
		wh, err := openWarehouse(ctx, cfg, logger, metrics)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, wh.Close)
		deps.Updates = wh
		deps.Sink = wh
	}

	if cfg.Debug {
		sink, err := filesink.New(cfg.OutputDir, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Sink = sink
	}

	if cfg.PublishEnabled() {
		pub := kafka.NewPublisher(cfg, logger)
		a.closers = append(a.closers, pub.Close)
		deps.Notifier = pub
	}

	a.pipeline = pipeline.New(deps, pipeline.Options{
		Initialization: cfg.Initialization,
		RecordUpdates:  !cfg.Debug,
	}, logger, metrics)
	return a, nil
}

// weatherFetcher wraps the archive client in Redis when REDIS_ADDR is set and
// in an in-process LRU otherwise.
func (a *app) weatherFetcher(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (weather.Fetcher, error) {
	client := weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimezone, cfg.WeatherRateLimit,
		cfg.HTTPTimeout, cfg.Retries, logger, metrics)

	if cfg.RedisAddr == "" {
		return weather.NewCachedClient(client, weather.NewMemoryCache(cfg.WeatherCacheSize), metrics), nil
	}
	cache, err := weather.NewRedisCache(ctx, cfg.RedisAddr, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cache.Close)
	return weather.NewCachedClient(client, cache, metrics), nil
}

func openWarehouse(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*warehouse.Warehouse, error) {
	db, err := warehouse.Open(cfg.WarehouseDriver, cfg.WarehouseDSN)
	if err != nil {
		return nil, err
	}
	wh := warehouse.New(db, cfg.LoadBatchSize, logger, metrics)
	if err := wh.Ping(ctx); err != nil {
		_ = wh.Close()
		return nil, fmt.Errorf("connect to warehouse: %w", err)
	}
	if cfg.Initialization && !cfg.Debug {
		if err := wh.Migrate(ctx); err != nil {
			_ = wh.Close()
			return nil, err
		}
	}
	return wh, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
