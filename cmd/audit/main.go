// Command audit starts the prediction audit service.
//
// It consumes prediction and training-run events from Kafka, aggregates
// approval statistics in memory, persists events and periodic snapshots to
// PostgreSQL when enabled, and serves GET /api/v1/stats and
// GET /api/v1/stats/history.
//
// Usage:
//
//	go run ./cmd/audit [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/migrations"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting audit service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker()

	var (
		sink    audit.EventSink
		history audit.SnapshotLister
		store   *audit.Store
	)
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(migrations.FS); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		store = audit.NewStore(db)
		sink, history = store, store
		checker.RegisterPing("postgres", true, db.Ping)
	} else {
		slog.Warn("postgres disabled, events and snapshots are not persisted")
	}

	aggregator := audit.NewAggregator(sink, m)
	if store != nil {
		store.StartPeriodicSave(ctx, aggregator, cfg.Audit.SnapshotInterval)
	}

	handle := audit.HandleMessage(aggregator)
	for _, topic := range []string{cfg.Kafka.Topics.Predictions, cfg.Kafka.Topics.TrainingRuns} {
		consumer := kafka.NewConsumer(cfg.Kafka, topic, handle)
		go func(topic string) {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("consumer stopped", "topic", topic, "error", err)
			}
		}(topic)
		slog.Info("audit consumer started", "topic", topic)
	}
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumers active"}
	})

	h := audit.NewHandler(aggregator, history)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/stats/history", h.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, m)
		defer shutdownMetrics(context.Background())
	}

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.AccessLog(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("audit service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("audit service stopped")
}
