// Command engine runs the ocean measurement product service: it holds
// dataset row snapshots in memory, optionally ingests row batches from
// Kafka, and serves heatmap, vector, station, and validation products over
// HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/ocean-map-engine/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ocean-map-engine/internal/adapter/kafka"
	"github.com/couchcryptid/ocean-map-engine/internal/config"
	"github.com/couchcryptid/ocean-map-engine/internal/engine"
	"github.com/couchcryptid/ocean-map-engine/internal/observability"
	"github.com/couchcryptid/ocean-map-engine/internal/rowset"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store := rowset.New(cfg.DatasetRowCap, metrics)
	pool := engine.New(cfg.WorkerCount, cfg.QueueSize, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, store, pool, pool, logger, metrics, cfg.ProductCacheSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ingest is feature-flagged; the service is fully usable with inline-row
	// requests when Kafka is disabled.
	var consumer *kafkaadapter.Consumer
	if cfg.KafkaEnabled {
		consumer = kafkaadapter.NewConsumer(cfg, store, logger, metrics)
		logger.Info("kafka ingest enabled", "topic", cfg.KafkaTopic, "group_id", cfg.KafkaGroupID)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("kafka consumer error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka ingest disabled")
	}

	go func() {
		if err := pool.Run(ctx); err != nil {
			logger.Error("worker pool error", "error", err)
		}
	}()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("kafka consumer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
