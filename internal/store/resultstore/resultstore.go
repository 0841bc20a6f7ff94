// Package resultstore provides write-only insert and paged history queries
// over the unified analysis_results table.
package resultstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/sqlrewrite"
)

type Store struct {
	db storage.DB
}

func New(db storage.DB) *Store { return &Store{db: db} }

var _ domain.ResultRepository = (*Store)(nil)

func (s *Store) rewrite(template string, args []any) (string, []any, error) {
	return sqlrewrite.Rewrite(template, args, storage.RewriteDialect(s.db.Dialect()))
}

// Insert is write-only; rejects a duplicate (ticker, job_id) with
// domain.ErrResultDuplicate, enforced by a unique index.
func (s *Store) Insert(ctx context.Context, result domain.AnalysisResult) (int64, error) {
	now := time.Now().UTC()
	sql, args, err := s.rewrite(
		`INSERT INTO analysis_results (ticker, symbol, job_id, source, raw_data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		[]any{result.Ticker, result.Symbol, result.JobID, string(result.Source), string(result.RawData), now},
	)
	if err != nil {
		return 0, err
	}

	if s.db.Dialect() == storage.DialectServer {
		row := s.db.QueryRow(ctx, sql+" RETURNING id", args...)
		var id int64
		if err := row.Scan(&id); err != nil {
			if isUniqueViolation(err) {
				return 0, domain.ErrResultDuplicate
			}
			return 0, fmt.Errorf("op=resultstore.Insert: %w", err)
		}
		return id, nil
	}

	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrResultDuplicate
		}
		return 0, fmt.Errorf("op=resultstore.Insert: %w", err)
	}
	row := s.db.QueryRow(ctx, "SELECT last_insert_rowid()")
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("op=resultstore.Insert: read id: %w", err)
	}
	return id, nil
}

const selectResultColumns = `SELECT id, ticker, symbol, job_id, source, raw_data, created_at FROM analysis_results`

// History returns the most recent limit records for ticker, newest first.
func (s *Store) History(ctx context.Context, ticker string, limit int) ([]domain.AnalysisResult, error) {
	results, _, err := s.HistoryPaged(ctx, ticker, 0, limit, true)
	return results, err
}

// HistoryPaged returns a page plus total count for pagination.
func (s *Store) HistoryPaged(ctx context.Context, ticker string, offset, limit int, sortDesc bool) ([]domain.AnalysisResult, int64, error) {
	order := "ASC"
	if sortDesc {
		order = "DESC"
	}

	sql, args, err := s.rewrite(
		selectResultColumns+fmt.Sprintf(" WHERE ticker = ? ORDER BY created_at %s LIMIT ? OFFSET ?", order),
		[]any{ticker, limit, offset},
	)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("op=resultstore.HistoryPaged: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalysisResult
	for rows.Next() {
		var r domain.AnalysisResult
		var jobID *string
		var rawData string
		if err := rows.Scan(&r.ID, &r.Ticker, &r.Symbol, &jobID, &r.Source, &rawData, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("op=resultstore.HistoryPaged: scan: %w", err)
		}
		r.JobID = jobID
		r.RawData = []byte(rawData)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countSQL, countArgs, err := s.rewrite(`SELECT COUNT(*) FROM analysis_results WHERE ticker = ?`, []any{ticker})
	if err != nil {
		return nil, 0, err
	}
	row := s.db.QueryRow(ctx, countSQL, countArgs...)
	var total int64
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("op=resultstore.HistoryPaged: count: %w", err)
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
