package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"
)

// liteDB is the embedded single-file store (development backend, spec
// §4.2). It hands out one *sql.Conn per call via sql.DB.Conn(ctx), released
// on every exit path including panics — the scoped-acquisition idiom the
// spec requires so a connection is never shared across concurrent workers.
// MaxOpenConns is pinned to 1: SQLite is single-writer, and this keeps the
// acquisition itself the serialization point rather than relying on
// SQLite's own busy-timeout retries.
type liteDB struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (creating if absent) a single-file SQLite database at
// path, suitable as the embedded development backend.
func OpenSQLite(ctx context.Context, path string, retry RetryConfig) (DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("op=storage.OpenSQLite: mkdir: %w", err)
			}
		}
	}

	var sqlDB *sql.DB
	op := func() error {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return backoff.Permanent(err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return err
		}
		sqlDB = db
		return nil
	}
	if err := backoff.Retry(op, retry.policy()); err != nil {
		return nil, err
	}

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &liteDB{sqlDB: sqlDB}, nil
}

func (d *liteDB) Dialect() Dialect { return DialectEmbedded }

func (d *liteDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	conn, err := d.sqlDB.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *liteDB) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	conn, err := d.sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &liteRows{rows: rows, conn: conn}, nil
}

func (d *liteDB) QueryRow(ctx context.Context, query string, args ...any) Row {
	conn, err := d.sqlDB.Conn(ctx)
	if err != nil {
		return &liteRow{err: err}
	}
	row := conn.QueryRowContext(ctx, query, args...)
	return &liteRow{row: row, conn: conn}
}

func (d *liteDB) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	conn, err := d.sqlDB.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()

	err = fn(ctx, &liteTx{tx: sqlTx})
	return err
}

func (d *liteDB) Close() error { return d.sqlDB.Close() }

func (d *liteDB) Ping(ctx context.Context) error { return d.sqlDB.PingContext(ctx) }

type liteTx struct{ tx *sql.Tx }

func (t *liteTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *liteTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &liteRows{rows: rows}, nil
}

func (t *liteTx) QueryRow(ctx context.Context, query string, args ...any) Row {
	return &liteRow{row: t.tx.QueryRowContext(ctx, query, args...)}
}

// liteRows wraps *sql.Rows, closing the borrowed connection (if any) when
// the row set is closed.
type liteRows struct {
	rows *sql.Rows
	conn *sql.Conn
}

func (r *liteRows) Next() bool            { return r.rows.Next() }
func (r *liteRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *liteRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *liteRows) Err() error             { return r.rows.Err() }
func (r *liteRows) Close() error {
	err := r.rows.Close()
	if r.conn != nil {
		if cerr := r.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type liteRow struct {
	row  *sql.Row
	conn *sql.Conn
	err  error
}

func (r *liteRow) Scan(dest ...any) error {
	defer func() {
		if r.conn != nil {
			r.conn.Close()
		}
	}()
	if r.err != nil {
		return r.err
	}
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return err
}
