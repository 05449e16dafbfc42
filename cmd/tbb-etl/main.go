package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/storm-data-tbb/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-data-tbb/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-tbb/internal/adapter/mapbox"
	"github.com/couchcryptid/storm-data-tbb/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-tbb/internal/config"
	"github.com/couchcryptid/storm-data-tbb/internal/domain"
	"github.com/couchcryptid/storm-data-tbb/internal/observability"
	"github.com/couchcryptid/storm-data-tbb/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		logger.Error("failed to load analysis profile", "path", cfg.ProfilePath, "error", err)
		os.Exit(1)
	}
	analyzer, err := newAnalyzer(cfg, profile, metrics, logger)
	if err != nil {
		logger.Error("invalid analysis profile", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(analyzer, metrics, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start analysis pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// newAnalyzer wires the NetCDF grid source, its cache, and the optional
// geocoder into an Analyzer.
func newAnalyzer(cfg *config.Config, profile *config.Profile, metrics *observability.Metrics, logger *slog.Logger) (*domain.Analyzer, error) {
	sampler, err := profile.SamplerConfig()
	if err != nil {
		return nil, err
	}
	indices, err := profile.IndexConfig()
	if err != nil {
		return nil, err
	}
	unit, err := profile.Unit()
	if err != nil {
		return nil, err
	}

	grids := netcdf.NewCachedSource(
		netcdf.NewReader(logger, netcdf.WithVariable(profile.Variable), netcdf.WithDefaultUnit(unit)),
		cfg.GridCacheSize,
		func(result string) { metrics.GridCache.WithLabelValues(result).Inc() },
	)

	opts := []domain.AnalyzerOption{
		domain.WithConcurrency(cfg.SampleConcurrency),
		domain.WithSampleHook(func(band, outcome string) {
			metrics.Samples.WithLabelValues(band, outcome).Inc()
		}),
	}

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		opts = append(opts, domain.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("mapbox geocoding disabled")
	}

	logger.Info("analysis profile loaded",
		"variable", profile.Variable,
		"distance_mode", string(sampler.DistanceMode),
		"radius_mode", string(sampler.RadiusMode),
		"reference_band", indices.Reference,
		"bands", indices.Bands(),
		"grid_cache_size", cfg.GridCacheSize,
		"concurrency", cfg.SampleConcurrency,
	)
	return domain.NewAnalyzer(grids, sampler, indices, logger, opts...), nil
}
