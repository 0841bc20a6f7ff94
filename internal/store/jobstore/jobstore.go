// Package jobstore provides atomic CRUD on job records, progress increments
// and terminal-state transitions, backend-agnostic via storage.DB.
package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/sqlrewrite"
)

// Store implements domain.JobRepository over a storage.DB, rewriting every
// `?`-templated statement for the backend's native dialect via sqlrewrite.
type Store struct {
	db            storage.DB
	errorCapacity int
}

// New constructs a Store. errorCapacity bounds the job.Errors list (spec
// §3: "bounded capacity, oldest dropped on overflow; default cap 1000").
func New(db storage.DB, errorCapacity int) *Store {
	if errorCapacity <= 0 {
		errorCapacity = 1000
	}
	return &Store{db: db, errorCapacity: errorCapacity}
}

var _ domain.JobRepository = (*Store)(nil)

func (s *Store) exec(ctx context.Context, tx storage.Tx, template string, args ...any) (int64, error) {
	sql, rewArgs, err := sqlrewrite.Rewrite(template, args, storage.RewriteDialect(s.db.Dialect()))
	if err != nil {
		return 0, err
	}
	if tx != nil {
		return tx.Exec(ctx, sql, rewArgs...)
	}
	return s.db.Exec(ctx, sql, rewArgs...)
}

func (s *Store) queryRow(ctx context.Context, tx storage.Tx, template string, args ...any) (storage.Row, error) {
	sql, rewArgs, err := sqlrewrite.Rewrite(template, args, storage.RewriteDialect(s.db.Dialect()))
	if err != nil {
		return nil, err
	}
	if tx != nil {
		return tx.QueryRow(ctx, sql, rewArgs...), nil
	}
	return s.db.QueryRow(ctx, sql, rewArgs...), nil
}

// Create inserts a queued job row. Returns domain.ErrJobDuplicate on id
// collision.
func (s *Store) Create(ctx context.Context, job domain.Job) (string, error) {
	now := time.Now().UTC()
	_, err := s.exec(ctx,
		nil,
		`INSERT INTO jobs (id, status, total, completed, successful, errors, message, description, cancel_requested, created_at, updated_at)
		 VALUES (?, ?, ?, 0, 0, '[]', ?, ?, ?, ?, ?)`,
		job.ID, string(domain.JobQueued), job.Total, job.Message, job.Description, boolParam(s.db.Dialect(), false), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrJobDuplicate
		}
		return "", fmt.Errorf("op=jobstore.Create: %w", err)
	}
	return job.ID, nil
}

// Start transitions queued -> processing, setting StartedAt. No-op if
// already processing.
func (s *Store) Start(ctx context.Context, jobID string) error {
	now := time.Now().UTC()
	n, err := s.exec(ctx, nil,
		`UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(domain.JobProcessing), now, now, jobID, string(domain.JobQueued),
	)
	if err != nil {
		return fmt.Errorf("op=jobstore.Start: %w", err)
	}
	if n == 0 {
		// Either already processing (no-op, per contract) or missing.
		job, err := s.Status(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != domain.JobProcessing {
			return fmt.Errorf("op=jobstore.Start: unexpected status %q", job.Status)
		}
	}
	return nil
}

// RecordProgress atomically advances completed/successful/errors inside a
// transaction, so the read-modify-write of the JSON errors column is
// serialized against concurrent progress updates for the same job (the
// server backend reads the row with SELECT ... FOR UPDATE).
func (s *Store) RecordProgress(ctx context.Context, jobID string, index int, ticker string, ok bool, failMsg string) error {
	return s.db.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		query := `SELECT errors FROM jobs WHERE id = ?`
		if s.db.Dialect() == storage.DialectServer {
			query += ` FOR UPDATE`
		}
		row, err := s.queryRow(ctx, tx, query, jobID)
		if err != nil {
			return err
		}
		var errorsJSON string
		if err := row.Scan(&errorsJSON); err != nil {
			return translateNotFound(err)
		}

		var errs []domain.JobError
		if errorsJSON != "" {
			if err := json.Unmarshal([]byte(errorsJSON), &errs); err != nil {
				return fmt.Errorf("op=jobstore.RecordProgress: decode errors: %w", err)
			}
		}

		successfulDelta := 0
		if ok {
			successfulDelta = 1
		} else {
			errs = append(errs, domain.JobError{Ticker: ticker, Message: failMsg})
			if len(errs) > s.errorCapacity {
				errs = errs[len(errs)-s.errorCapacity:]
			}
		}

		encoded, err := json.Marshal(errs)
		if err != nil {
			return fmt.Errorf("op=jobstore.RecordProgress: encode errors: %w", err)
		}

		now := time.Now().UTC()
		_, err = s.exec(ctx, tx,
			`UPDATE jobs
			 SET completed = completed + 1,
			     successful = successful + ?,
			     errors = ?,
			     current_ticker = ?,
			     current_index = ?,
			     updated_at = ?
			 WHERE id = ?`,
			successfulDelta, string(encoded), ticker, index, now, jobID,
		)
		return err
	})
}

// Finalize transitions to cancelled or completed; only legal from
// processing.
func (s *Store) Finalize(ctx context.Context, jobID string, cancelled bool) error {
	now := time.Now().UTC()
	status := domain.JobCompleted
	if cancelled {
		status = domain.JobCancelled
	}
	n, err := s.exec(ctx, nil,
		`UPDATE jobs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), now, now, jobID, string(domain.JobProcessing),
	)
	if err != nil {
		return fmt.Errorf("op=jobstore.Finalize: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("op=jobstore.Finalize: job %s not in processing state: %w", jobID, domain.ErrJobStartFailed)
	}
	return nil
}

// Fail transitions a job straight to failed from any non-terminal state —
// for a controller-level fault, not a per-ticker error. No-op if the job is
// already terminal.
func (s *Store) Fail(ctx context.Context, jobID string, message string) error {
	now := time.Now().UTC()
	n, err := s.exec(ctx, nil,
		`UPDATE jobs SET status = ?, message = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(domain.JobFailed), message, now, now, jobID, string(domain.JobQueued), string(domain.JobProcessing),
	)
	if err != nil {
		return fmt.Errorf("op=jobstore.Fail: %w", err)
	}
	if n == 0 {
		if _, err := s.Status(ctx, jobID); err != nil {
			return err
		}
		// already terminal: no-op per P3.
	}
	return nil
}

// RequestCancel sets cancel_requested=true; returns domain.ErrJobCancelInvalid
// when the job is already terminal.
func (s *Store) RequestCancel(ctx context.Context, jobID string) error {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return domain.ErrJobCancelInvalid
	}
	now := time.Now().UTC()
	_, err = s.exec(ctx, nil,
		`UPDATE jobs SET cancel_requested = ?, updated_at = ? WHERE id = ?`,
		boolParam(s.db.Dialect(), true), now, jobID,
	)
	if err != nil {
		return fmt.Errorf("op=jobstore.RequestCancel: %w", err)
	}
	return nil
}

// Status returns the current record or domain.ErrJobNotFound.
func (s *Store) Status(ctx context.Context, jobID string) (domain.Job, error) {
	row, err := s.queryRow(ctx, nil, selectJobColumns+` WHERE id = ?`, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	return scanJob(row)
}

const selectJobColumns = `SELECT id, status, total, completed, successful, errors, current_ticker, current_index,
	message, description, cancel_requested, created_at, started_at, updated_at, completed_at FROM jobs`

func scanJob(row storage.Row) (domain.Job, error) {
	var j domain.Job
	var status, errorsJSON string
	var cancelRequested any
	var createdAt, updatedAt time.Time
	var startedAt, completedAt *time.Time
	var currentTicker *string
	var currentIndex *int

	if err := row.Scan(&j.ID, &status, &j.Total, &j.Completed, &j.Successful, &errorsJSON,
		&currentTicker, &currentIndex, &j.Message, &j.Description, &cancelRequested,
		&createdAt, &startedAt, &updatedAt, &completedAt); err != nil {
		return domain.Job{}, translateNotFound(err)
	}

	j.Status = domain.JobStatus(status)
	j.CurrentTicker = currentTicker
	j.CurrentIndex = currentIndex
	j.CreatedAt = createdAt
	j.StartedAt = startedAt
	j.UpdatedAt = updatedAt
	j.CompletedAt = completedAt
	j.CancelRequested = asBool(cancelRequested)

	if errorsJSON != "" {
		if err := json.Unmarshal([]byte(errorsJSON), &j.Errors); err != nil {
			return domain.Job{}, fmt.Errorf("op=jobstore.scanJob: decode errors: %w", err)
		}
	}
	return j, nil
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

func boolParam(dialect storage.Dialect, v bool) any {
	if dialect == storage.DialectServer {
		return v
	}
	if v {
		return 1
	}
	return 0
}
