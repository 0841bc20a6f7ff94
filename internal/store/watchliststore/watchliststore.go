// Package watchliststore provides watchlist membership CRUD keyed by
// ticker, with duplicate detection.
package watchliststore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/sqlrewrite"
)

type Store struct {
	db storage.DB
}

func New(db storage.DB) *Store { return &Store{db: db} }

var _ domain.WatchlistRepository = (*Store)(nil)

func (s *Store) rewrite(template string, args []any) (string, []any, error) {
	return sqlrewrite.Rewrite(template, args, storage.RewriteDialect(s.db.Dialect()))
}

// Add inserts a watchlist row; returns domain.ErrWatchlistDuplicate when
// ticker already exists.
func (s *Store) Add(ctx context.Context, item domain.WatchlistItem) (int64, error) {
	now := time.Now().UTC()
	sql, args, err := s.rewrite(
		`INSERT INTO watchlist (ticker, symbol, notes, created_at) VALUES (?, ?, ?, ?)`,
		[]any{item.Ticker, item.Symbol, item.Notes, now},
	)
	if err != nil {
		return 0, err
	}

	if s.db.Dialect() == storage.DialectServer {
		row := s.db.QueryRow(ctx, sql+" RETURNING id", args...)
		var id int64
		if err := row.Scan(&id); err != nil {
			if isUniqueViolation(err) {
				return 0, domain.ErrWatchlistDuplicate
			}
			return 0, fmt.Errorf("op=watchliststore.Add: %w", err)
		}
		return id, nil
	}

	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrWatchlistDuplicate
		}
		return 0, fmt.Errorf("op=watchliststore.Add: %w", err)
	}
	row := s.db.QueryRow(ctx, "SELECT last_insert_rowid()")
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("op=watchliststore.Add: read id: %w", err)
	}
	return id, nil
}

// Remove deletes the row for ticker; returns domain.ErrWatchlistNotFound if
// absent.
func (s *Store) Remove(ctx context.Context, ticker string) error {
	sql, args, err := s.rewrite(`DELETE FROM watchlist WHERE ticker = ?`, []any{ticker})
	if err != nil {
		return err
	}
	n, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("op=watchliststore.Remove: %w", err)
	}
	if n == 0 {
		return domain.ErrWatchlistNotFound
	}
	return nil
}

// Get returns the watchlist row for ticker, or domain.ErrWatchlistNotFound.
func (s *Store) Get(ctx context.Context, ticker string) (domain.WatchlistItem, error) {
	sql, args, err := s.rewrite(`SELECT id, ticker, symbol, notes, created_at FROM watchlist WHERE ticker = ?`, []any{ticker})
	if err != nil {
		return domain.WatchlistItem{}, err
	}
	row := s.db.QueryRow(ctx, sql, args...)
	var item domain.WatchlistItem
	if err := row.Scan(&item.ID, &item.Ticker, &item.Symbol, &item.Notes, &item.CreatedAt); err != nil {
		if isNoRows(err) {
			return domain.WatchlistItem{}, domain.ErrWatchlistNotFound
		}
		return domain.WatchlistItem{}, fmt.Errorf("op=watchliststore.Get: %w", err)
	}
	return item, nil
}

// List returns a page of watchlist items plus the total count.
func (s *Store) List(ctx context.Context, offset, limit int) ([]domain.WatchlistItem, int64, error) {
	sql, args, err := s.rewrite(
		`SELECT id, ticker, symbol, notes, created_at FROM watchlist ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		[]any{limit, offset},
	)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("op=watchliststore.List: %w", err)
	}
	defer rows.Close()

	var out []domain.WatchlistItem
	for rows.Next() {
		var item domain.WatchlistItem
		if err := rows.Scan(&item.ID, &item.Ticker, &item.Symbol, &item.Notes, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("op=watchliststore.List: scan: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countRow := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM watchlist`)
	var total int64
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("op=watchliststore.List: count: %w", err)
	}
	return out, total, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}
