package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/hanoi-aq-nowcast/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hanoi-aq-nowcast/internal/adapter/kafka"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/adapter/openmeteo"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/config"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/ingest"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/nowcast"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/observability"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	fetcher := openmeteo.NewClient(cfg.StationLat, cfg.StationLon, cfg.OpenMeteoTimeout, metrics, logger)

	// Alert publishing rides on the optional Kafka integration.
	var alertWriter *kafkaadapter.AlertWriter
	var publisher nowcast.AlertPublisher
	if cfg.KafkaEnabled {
		alertWriter = kafkaadapter.NewAlertWriter(cfg, logger)
		publisher = alertWriter
		logger.Info("kafka integration enabled",
			"brokers", cfg.KafkaBrokers,
			"source_topic", cfg.KafkaSourceTopic,
			"alert_topic", cfg.KafkaAlertTopic,
		)
	} else {
		logger.Info("kafka integration disabled")
	}

	svc := nowcast.NewService(st, publisher, cfg, nil, logger, metrics)

	poller := ingest.NewPoller(fetcher, st, cfg.RefreshInterval, svc.Refresh, nil, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the Open-Meteo poller.
	go func() {
		if err := poller.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	// Start the sensor ingest pipeline when Kafka is enabled.
	var reader *kafkaadapter.Reader
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		pipe := ingest.NewPipeline(reader, st, logger, metrics, cfg.BatchSize)
		go func() {
			if err := pipe.Run(ctx); err != nil {
				logger.Error("sensor pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if alertWriter != nil {
		if err := alertWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
