// Command predictor serves loan approval predictions and the policy
// assistant over HTTP.
//
// Usage:
//
//	go run ./cmd/predictor [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/assistant"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/resilience"
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
	slog.Info("starting predictor service", "port", cfg.Server.Port, "artifact", cfg.Predictor.ArtifactPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	opts := []predictor.Option{
		predictor.WithMetrics(m),
		predictor.WithMaxBatch(cfg.Predictor.MaxBatchSize),
	}

	var cache *predictor.Cache
	var redisClient *pkgredis.Client
	if cfg.Predictor.CacheEnabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, prediction caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{})
			cache = predictor.NewCache(predictor.Guard(redisClient, breaker), cfg.Redis.CacheTTL, m)
			opts = append(opts, predictor.WithCache(cache))
			slog.Info("prediction cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Predictions)
		defer producer.Close()
		collector := audit.NewCollector(producer, cfg.Audit.BufferSize, 100, time.Second, m)
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, predictor.WithTracker(collector))
		slog.Info("audit collector started", "topic", cfg.Kafka.Topics.Predictions)
	}

	svc := predictor.New(cfg.Predictor.ArtifactPath, opts...)
	policy := assistant.New(cfg.Predictor.PolicyPath, m)

	checker := health.NewChecker()
	checker.RegisterPing("model", true, svc.Ready)
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	predictor.NewHandler(svc, policy, cache).Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
		go limiter.RunCleanup(ctx, cfg.RateLimit.Window)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(cfg.CORS.AllowedOrigins)(chain)
	chain = middleware.AccessLog(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, m)
		defer shutdownMetrics(context.Background())
	}

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

	slog.Info("predictor service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// Shutdown returns once in-flight handlers finish; only then may the
	// deferred collector and producer close.
	<-shutdownDone

	slog.Info("predictor service stopped")
}
