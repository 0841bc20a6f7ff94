package jobstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/sqlrewrite"
)

func (s *Store) queryRows(ctx context.Context, template string, args ...any) (storage.Rows, error) {
	sql, rewArgs, err := sqlrewrite.Rewrite(template, args, storage.RewriteDialect(s.db.Dialect()))
	if err != nil {
		return nil, err
	}
	return s.db.Query(ctx, sql, rewArgs...)
}

// ListWithFilters supports admin-style job listing with search and status
// filters.
func (s *Store) ListWithFilters(ctx context.Context, offset, limit int, search, status string) ([]domain.Job, error) {
	var where []string
	var args []any
	if search != "" {
		where = append(where, "(id LIKE ? OR description LIKE ?)")
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	if status != "" {
		where = append(where, "status = ?")
		args = append(args, status)
	}

	query := selectJobColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("op=jobstore.ListWithFilters: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CountWithFilters mirrors ListWithFilters' predicate for pagination totals.
func (s *Store) CountWithFilters(ctx context.Context, search, status string) (int64, error) {
	var where []string
	var args []any
	if search != "" {
		where = append(where, "(id LIKE ? OR description LIKE ?)")
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	if status != "" {
		where = append(where, "status = ?")
		args = append(args, status)
	}

	query := "SELECT COUNT(*) FROM jobs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	row, err := s.queryRow(ctx, nil, query, args...)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("op=jobstore.CountWithFilters: %w", err)
	}
	return n, nil
}

// CountByStatus returns the number of jobs currently in status.
func (s *Store) CountByStatus(ctx context.Context, status domain.JobStatus) (int64, error) {
	row, err := s.queryRow(ctx, nil, "SELECT COUNT(*) FROM jobs WHERE status = ?", string(status))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("op=jobstore.CountByStatus: %w", err)
	}
	return n, nil
}

// scanJobRows scans one row off a storage.Rows using the same column order
// as selectJobColumns.
func scanJobRows(rows storage.Rows) (domain.Job, error) {
	return scanJob(rowsAdapter{rows})
}

// rowsAdapter lets storage.Rows satisfy storage.Row (both expose Scan).
type rowsAdapter struct{ storage.Rows }
