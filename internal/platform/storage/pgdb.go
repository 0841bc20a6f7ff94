package storage

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockanalysis/job-engine/internal/adapter/repo/postgres"
)

// pgDB is the server-backed DB implementation, built on pgxpool with
// otelpgx tracing.
type pgDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres builds a pool via postgres.NewPool (pgxpool + otelpgx tracing
// and stats), sized to maxConns, and pings it, retrying transient failures
// with exponential backoff.
func OpenPostgres(ctx context.Context, dsn string, retry RetryConfig, maxConns int32) (DB, error) {
	var pool *pgxpool.Pool
	op := func() error {
		p, err := postgres.NewPool(ctx, dsn, maxConns)
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		pool = p
		return nil
	}
	if err := backoff.Retry(op, retry.policy()); err != nil {
		return nil, err
	}

	return &pgDB{pool: pool}, nil
}

func (d *pgDB) Dialect() Dialect { return DialectServer }

func (d *pgDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := d.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (d *pgDB) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows}, nil
}

func (d *pgDB) QueryRow(ctx context.Context, query string, args ...any) Row {
	return &pgRow{row: d.pool.QueryRow(ctx, query, args...)}
}

func (d *pgDB) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	pgxTx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = pgxTx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = pgxTx.Rollback(ctx)
			return
		}
		err = pgxTx.Commit(ctx)
	}()

	err = fn(ctx, &pgTx{tx: pgxTx})
	return err
}

func (d *pgDB) Close() error {
	d.pool.Close()
	return nil
}

func (d *pgDB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows}, nil
}

func (t *pgTx) QueryRow(ctx context.Context, query string, args ...any) Row {
	return &pgRow{row: t.tx.QueryRow(ctx, query, args...)}
}

type pgRows struct{ rows pgx.Rows }

func (r *pgRows) Next() bool    { return r.rows.Next() }
func (r *pgRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f.Name)
	}
	return out, nil
}
func (r *pgRows) Close() error { r.rows.Close(); return nil }
func (r *pgRows) Err() error   { return r.rows.Err() }

type pgRow struct{ row pgx.Row }

func (r *pgRow) Scan(dest ...any) error { return r.row.Scan(dest...) }

// isTransient classifies connection-level errors as retryable: syntax
// errors and constraint violations are not retried.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Syntax errors, constraint violations etc. carry a SQLSTATE and are
		// never transient.
		return false
	}
	return true
}
