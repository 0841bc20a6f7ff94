// Package storage provides the dual-backend persistence layer: a thin DB
// interface implemented once for an embedded single-file SQLite store and
// once for a pooled PostgreSQL store, with schema migrations and
// transient-error retry shared by both.
package storage

import (
	"context"

	"github.com/stockanalysis/job-engine/internal/sqlrewrite"
)

// Dialect identifies which backend a DB instance talks to, and therefore
// which placeholder rewriting the store layer must apply via sqlrewrite.
type Dialect int

const (
	DialectEmbedded Dialect = iota
	DialectServer
)

// Row is the result of QueryRow: a single row, scanned on demand.
type Row interface {
	Scan(dest ...any) error
}

// Rows is an iterable query result set.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close() error
	Err() error
}

// Tx is a transaction handle passed to WithTx callbacks.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
}

// DB is the contract every store package (jobstore, resultstore,
// watchliststore, stockstore) is written against. Exactly one of the two
// backends (pgdb, litedb) is selected at startup by
// config.Config.UseEmbeddedStore.
type DB interface {
	Dialect() Dialect
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	// WithTx runs fn inside a transaction. The transaction commits if fn
	// returns nil, else rolls back. Never leaks a connection: commit/
	// rollback/release happen on every exit path including a panic in fn.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
	// Ping verifies connectivity, used by the /health endpoint.
	Ping(ctx context.Context) error
}

// RewriteDialect maps a DB's backend dialect to the corresponding
// sqlrewrite.Dialect, so store packages can rewrite `?`-templated SQL
// without knowing the backend directly.
func RewriteDialect(d Dialect) sqlrewrite.Dialect {
	if d == DialectServer {
		return sqlrewrite.DialectServer
	}
	return sqlrewrite.DialectEmbedded
}
