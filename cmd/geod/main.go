package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/order-geo-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/order-geo-service/internal/adapter/kafka"
	"github.com/couchcryptid/order-geo-service/internal/config"
	"github.com/couchcryptid/order-geo-service/internal/observability"
	"github.com/couchcryptid/order-geo-service/internal/pipeline"
	"github.com/couchcryptid/order-geo-service/internal/service"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := service.Build(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	ready := observability.NewReadiness().Add("usage", observability.PingFunc(svc.Usage.Ping))

	// Start the address pipeline (feature-flagged via KAFKA_ENABLED).
	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	done := make(chan struct{})
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(svc.Resolver, logger)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready.Add("pipeline", p)

		go func() {
			defer close(done)
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
		logger.Info("address pipeline enabled", "source", cfg.KafkaSourceTopic, "sink", cfg.KafkaSinkTopic)
	} else {
		close(done)
		logger.Info("address pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Geocoder:  svc.Resolver,
		Estimator: svc.Estimator,
		Usage:     svc.Usage,
		Ready:     ready,
		Metrics:   metrics,
		Providers: svc.Providers(),
		Location:  cfg.Location,
		Clock:     clockwork.NewRealClock(),
	}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := svc.Close(); err != nil {
		logger.Error("usage store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
