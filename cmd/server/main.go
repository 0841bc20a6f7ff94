// Command server starts the stock-analysis job engine's HTTP API.
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

	"github.com/redis/go-redis/v9"

	"github.com/stockanalysis/job-engine/internal/adapter/httpserver"
	"github.com/stockanalysis/job-engine/internal/adapter/observability"
	"github.com/stockanalysis/job-engine/internal/analysis"
	"github.com/stockanalysis/job-engine/internal/analysis/demofetch"
	"github.com/stockanalysis/job-engine/internal/app"
	"github.com/stockanalysis/job-engine/internal/config"
	"github.com/stockanalysis/job-engine/internal/controller"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/service/ratelimiter"
	"github.com/stockanalysis/job-engine/internal/store/jobstore"
	"github.com/stockanalysis/job-engine/internal/store/resultstore"
	"github.com/stockanalysis/job-engine/internal/store/stockstore"
	"github.com/stockanalysis/job-engine/internal/store/watchliststore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	db, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("db open failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	jobs := jobstore.New(db, cfg.JobErrorCapacity)
	results := resultstore.New(db)
	watchlist := watchliststore.New(db)
	stocks := stockstore.New(db)

	if n, err := stockstore.SeedFromYAML(ctx, db, "configs/stocks_universe.yaml"); err != nil {
		slog.Warn("stock catalogue seed failed", slog.Any("error", err))
	} else if n > 0 {
		slog.Info("stock catalogue seeded", slog.Int("rows", n))
	}

	orch := analysis.NewOrchestrator(demofetch.New(), analysis.DefaultRegistry())
	ctrl := controller.New(jobs, results, stocks, orch, controller.Config{
		WorkerPoolSize:   cfg.WorkerPoolSize,
		PerTickerTimeout: cfg.PerTickerTimeout,
		BulkUniverseCap:  cfg.BulkUniverseCap,
		MaxTickers:       cfg.MaxTickersPerRequest,
	})

	limiter := buildLimiter(cfg)

	srv := httpserver.NewServer(cfg, ctrl, jobs, results, watchlist, stocks, limiter, db.Ping)

	sweeper := app.NewStuckJobSweeper(jobs, cfg.StuckJobMaxProcessingAge, cfg.StuckJobSweepInterval)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Routes(),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// buildLimiter selects the in-process limiter, or a Redis-backed one when a
// Redis URL is configured so multiple server instances share one bucket.
func buildLimiter(cfg config.Config) ratelimiter.Limiter {
	if !cfg.RateLimitEnabled {
		return ratelimiter.NewInMemoryLimiter(ratelimiter.BucketConfig{Capacity: 1 << 30, RefillRate: 1 << 30}, time.Hour)
	}
	bucket := ratelimiter.NewBucketConfigFromPerMinute(cfg.RateLimitPerMin)
	if cfg.RateLimitRedisURL == "" {
		return ratelimiter.NewInMemoryLimiter(bucket, 10*time.Minute)
	}
	opts, err := redis.ParseURL(cfg.RateLimitRedisURL)
	if err != nil {
		slog.Error("invalid rate limit redis url, falling back to in-process limiter", slog.Any("error", err))
		return ratelimiter.NewInMemoryLimiter(bucket, 10*time.Minute)
	}
	rdb := redis.NewClient(opts)
	return ratelimiter.NewRedisLuaLimiter(rdb, nil, map[string]ratelimiter.BucketConfig{"default": bucket})
}
