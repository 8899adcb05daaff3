// Package main is the entry point for the negotiation engine service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/varunvs7692/chaos-negotiator/pkg/config"
	"github.com/varunvs7692/chaos-negotiator/pkg/kafka"
	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/models"
	"github.com/varunvs7692/chaos-negotiator/pkg/telemetry"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/engine"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/handlers"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/metrics"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/predictor"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/routes"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/scheduler"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/store"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/tuner"
)

// Build information (set via ldflags).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, "json")
	log = log.WithService("engine")

	log.Info("starting negotiation engine",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
		"env", cfg.Env,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	tel, err := telemetry.NewProvider(&telemetry.Config{
		ServiceName:    "chaos-negotiator",
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.Telemetry.Enabled,
		ExporterType:   telemetry.ExporterType(cfg.Telemetry.Exporter),
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		OTLPInsecure:   cfg.IsDevelopment(),
		SampleRate:     cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// Outcome store
	history, err := store.Open(ctx, cfg.History.DBPath, store.Options{
		RetentionRows: cfg.History.RetentionRows,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to open outcome store: %w", err)
	}
	defer history.Close()

	log.Info("outcome store opened", "path", cfg.History.DBPath)

	// Predictors
	linear := predictor.NewLinear(cfg.Tuning.LearningRate, cfg.Tuning.Regularization)
	ensemble := predictor.NewEnsemble(predictor.NewHeuristic(), linear, models.EnsembleWeights{
		Heuristic: cfg.Tuning.HeuristicWeight,
		ML:        cfg.Tuning.MLWeight,
	})
	metrics.SetEnsembleWeights(cfg.Tuning.HeuristicWeight, cfg.Tuning.MLWeight)

	// Warm the calibration from whatever history already exists.
	if recent, err := history.Recent(ctx, cfg.Tuning.SampleWindow); err == nil {
		ensemble.RefreshCalibration(recent)
	} else {
		log.Warn("initial calibration load failed", "error", err)
	}

	// Optional event publishing
	var engineOpts []engine.Option
	var producer *kafka.Producer
	if cfg.Kafka.PublishingEnabled() {
		producer, err = kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Warn("kafka producer init failed, events disabled", "error", err)
		} else {
			defer producer.Close()
			engineOpts = append(engineOpts, engine.WithPublisher(producer, engine.Topics{
				DeploymentAssessed: cfg.Kafka.Topics.DeploymentAssessed,
				OutcomeRecorded:    cfg.Kafka.Topics.OutcomeRecorded,
			}))
			log.Info("kafka publishing enabled", "brokers", cfg.Kafka.Brokers)
		}
	}

	eng := engine.New(ensemble, history, log, engineOpts...)

	// Background tuning
	var sched *scheduler.Scheduler
	if cfg.Tuning.Enabled {
		tun := tuner.New(ensemble, linear, history, cfg.Tuning.SampleWindow, log)
		sched = scheduler.New(tun, cfg.Tuning.Interval(), log)
		sched.Start()
		defer sched.Stop()
	} else {
		log.Info("background tuning disabled")
	}

	var kafkaHealth handlers.HealthChecker
	if producer != nil {
		kafkaHealth = producer
	}

	router := routes.New(routes.Config{
		Engine: eng,
		Store:  history,
		Kafka:  kafkaHealth,
		Config: cfg,
		Logger: log,
		BuildInfo: routes.BuildInfo{
			Version:   version,
			BuildTime: buildTime,
			GitCommit: gitCommit,
		},
	})

	server := &http.Server{
		Addr:         cfg.API.Address(),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.API.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				return fmt.Errorf("forced shutdown error: %w", err)
			}
		}

		log.Info("server shutdown complete")
	}

	return nil
}
