package storage

import (
	"context"
	"fmt"
)

// Migration is one schema change, applied inside its own transaction.
type Migration struct {
	Version int
	Up      func(ctx context.Context, tx Tx, dialect Dialect) error
}

// migrations holds the persisted state layout: jobs, analysis_results,
// watchlist, stocks, rate-limit buckets and the schema_version table.
var migrations = []Migration{
	{Version: 1, Up: migrateV1CreateSchemaVersion},
	{Version: 2, Up: migrateV2CreateJobs},
	{Version: 3, Up: migrateV3CreateAnalysisResults},
	{Version: 4, Up: migrateV4CreateWatchlist},
	{Version: 5, Up: migrateV5CreateStocks},
	{Version: 6, Up: migrateV6CreateRateLimitBuckets},
}

// Migrate reads the current schema_version and applies, in ascending
// order, every migration with version > current, inside one transaction
// each, bumping the version atomically. Safe to call on every startup
// (each Up is IF NOT EXISTS guarded).
func Migrate(ctx context.Context, db DB) error {
	if err := db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return migrateV1CreateSchemaVersion(ctx, tx, db.Dialect())
	}); err != nil {
		return fmt.Errorf("op=storage.Migrate: bootstrap schema_version: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("op=storage.Migrate: read version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			if err := m.Up(ctx, tx, db.Dialect()); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "UPDATE schema_version SET version = "+placeholder(db.Dialect(), 1), m.Version)
			return err
		}); err != nil {
			return fmt.Errorf("op=storage.Migrate: version %d: %w", m.Version, err)
		}
	}
	return nil
}

func currentVersion(ctx context.Context, db DB) (int, error) {
	row := db.QueryRow(ctx, "SELECT version FROM schema_version LIMIT 1")
	var v int
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func placeholder(d Dialect, n int) string {
	if d == DialectServer {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func migrateV1CreateSchemaVersion(ctx context.Context, tx Tx, dialect Dialect) error {
	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}
	row := tx.QueryRow(ctx, "SELECT COUNT(*) FROM schema_version")
	var n int
	if err := row.Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		if _, err := tx.Exec(ctx, "INSERT INTO schema_version (version) VALUES ("+placeholder(dialect, 1)+")", 0); err != nil {
			return err
		}
	}
	return nil
}

func migrateV2CreateJobs(ctx context.Context, tx Tx, dialect Dialect) error {
	var ddl string
	if dialect == DialectServer {
		ddl = `CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			successful INTEGER NOT NULL DEFAULT 0,
			errors TEXT NOT NULL DEFAULT '[]',
			current_ticker TEXT,
			current_index INTEGER,
			message TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`
	} else {
		ddl = `CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			successful INTEGER NOT NULL DEFAULT 0,
			errors TEXT NOT NULL DEFAULT '[]',
			current_ticker TEXT,
			current_index INTEGER,
			message TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			cancel_requested INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			started_at TEXT,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		)`
	}
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`)
	return err
}

func migrateV3CreateAnalysisResults(ctx context.Context, tx Tx, dialect Dialect) error {
	var ddl string
	if dialect == DialectServer {
		ddl = `CREATE TABLE IF NOT EXISTS analysis_results (
			id BIGSERIAL PRIMARY KEY,
			ticker TEXT NOT NULL,
			symbol TEXT NOT NULL,
			job_id TEXT,
			source TEXT NOT NULL,
			raw_data TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (ticker, job_id)
		)`
	} else {
		ddl = `CREATE TABLE IF NOT EXISTS analysis_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL,
			symbol TEXT NOT NULL,
			job_id TEXT,
			source TEXT NOT NULL,
			raw_data TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE (ticker, job_id)
		)`
	}
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_results_ticker_created ON analysis_results (ticker, created_at DESC)`); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_results_job_id ON analysis_results (job_id)`)
	return err
}

func migrateV4CreateWatchlist(ctx context.Context, tx Tx, dialect Dialect) error {
	var ddl string
	if dialect == DialectServer {
		ddl = `CREATE TABLE IF NOT EXISTS watchlist (
			id BIGSERIAL PRIMARY KEY,
			ticker TEXT NOT NULL,
			symbol TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`
	} else {
		ddl = `CREATE TABLE IF NOT EXISTS watchlist (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL,
			symbol TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`
	}
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_watchlist_ticker ON watchlist (ticker)`)
	return err
}

func migrateV5CreateStocks(ctx context.Context, tx Tx, dialect Dialect) error {
	var ddl string
	if dialect == DialectServer {
		ddl = `CREATE TABLE IF NOT EXISTS stocks (
			ticker TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			name TEXT NOT NULL,
			sector TEXT NOT NULL DEFAULT ''
		)`
	} else {
		ddl = `CREATE TABLE IF NOT EXISTS stocks (
			ticker TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			name TEXT NOT NULL,
			sector TEXT NOT NULL DEFAULT ''
		)`
	}
	_, err := tx.Exec(ctx, ddl)
	return err
}

// migrateV6CreateRateLimitBuckets backs the optional Redis-mirrored rate
// limiter (internal/service/ratelimiter): a durable snapshot of token-bucket
// state so a fresh Redis instance can be warmed on restart rather than
// resetting every client's remaining quota to full capacity.
func migrateV6CreateRateLimitBuckets(ctx context.Context, tx Tx, dialect Dialect) error {
	var ddl string
	if dialect == DialectServer {
		ddl = `CREATE TABLE IF NOT EXISTS rate_limit_buckets (
			bucket_key TEXT PRIMARY KEY,
			capacity BIGINT NOT NULL,
			refill_rate DOUBLE PRECISION NOT NULL,
			tokens DOUBLE PRECISION NOT NULL,
			last_refill TIMESTAMPTZ NOT NULL
		)`
	} else {
		ddl = `CREATE TABLE IF NOT EXISTS rate_limit_buckets (
			bucket_key TEXT PRIMARY KEY,
			capacity INTEGER NOT NULL,
			refill_rate REAL NOT NULL,
			tokens REAL NOT NULL,
			last_refill TEXT NOT NULL
		)`
	}
	_, err := tx.Exec(ctx, ddl)
	return err
}
