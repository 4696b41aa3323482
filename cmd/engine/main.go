package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/marine-data-engine/internal/adapter/climate"
	httpadapter "github.com/couchcryptid/marine-data-engine/internal/adapter/http"
	"github.com/couchcryptid/marine-data-engine/internal/adapter/ingestapi"
	kafkaadapter "github.com/couchcryptid/marine-data-engine/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/marine-data-engine/internal/adapter/redis"
	"github.com/couchcryptid/marine-data-engine/internal/adapter/sdm"
	"github.com/couchcryptid/marine-data-engine/internal/config"
	"github.com/couchcryptid/marine-data-engine/internal/observability"
	"github.com/couchcryptid/marine-data-engine/internal/pipeline"
	"github.com/couchcryptid/marine-data-engine/internal/store"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	plan, err := pipeline.LoadPlan(cfg.ProvidersFile)
	if err != nil {
		logger.Error("failed to load provider plan", "path", cfg.ProvidersFile, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []pipeline.Option{pipeline.WithFetchRetries(cfg.FetchRetries)}
	var closers []func() error

	// Kafka sink (feature-flagged via KAFKA_ENABLED).
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithLoaders(writer))
		closers = append(closers, writer.Close)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka sink disabled")
	}

	// Redis snapshot notifications (enabled by REDIS_URL).
	if cfg.RedisURL != "" {
		pub, err := redisadapter.NewPublisher(ctx, cfg.RedisURL, cfg.RedisChannel, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		opts = append(opts, pipeline.WithLoaders(pub))
		closers = append(closers, pub.Close)
		logger.Info("redis notifications enabled", "channel", cfg.RedisChannel)
	}

	for _, path := range cfg.ClimateFiles {
		opts = append(opts, pipeline.WithClimateSources(
			climate.NewReader(path, cfg.ClimateVariables, cfg.ClimateMaxRecords, logger),
		))
	}

	ingest := ingestapi.NewClient(cfg.IngestAPIURL, cfg.IngestTimeout, logger)
	models := sdm.NewClient(cfg.SDMAPIURL, cfg.SDMTimeout, metrics, logger)
	st := store.New(clockwork.NewRealClock())

	p := pipeline.New(ingest, ingest, st, logger, metrics, opts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, httpadapter.Deps{
		Snapshots:     st,
		Refresher:     p,
		Models:        models,
		Plan:          plan,
		MissingPolicy: cfg.MissingPolicy,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Initial refresh; later ones are triggered through the API.
	go func() {
		if _, err := p.Refresh(ctx, plan); err != nil {
			logger.Error("initial refresh failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
