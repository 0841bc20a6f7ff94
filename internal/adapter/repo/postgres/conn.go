// Package postgres builds the pgx connection pool backing the server
// storage backend.
package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool parses dsn and opens a pgx connection pool sized for a single
// job-engine instance: maxConns bounds concurrent connections (the worker
// pool plus HTTP handlers share this pool, so it should track
// config.WorkerPoolSize rather than a fixed constant), idle connections are
// recycled after 5 minutes, and every connection is traced with otelpgx so
// query spans show up next to the HTTP/job spans already emitted elsewhere.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	cfg.MaxConns = maxConns
	cfg.MaxConnIdleTime = 5 * time.Minute

	cfg.ConnConfig.Tracer = otelpgx.NewTracer(
		otelpgx.WithTrimSQLInSpanName(),
	)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := otelpgx.RecordStats(pool); err != nil {
		slog.Warn("postgres.NewPool: failed to record pgx pool stats", slog.Any("error", err))
	}

	return pool, nil
}
