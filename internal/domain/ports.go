package domain

import (
	"context"
	"time"
)

// JobRepository is the atomic job-store contract.
type JobRepository interface {
	// Create inserts a row with status=queued, completed=0, successful=0.
	// Returns ErrJobDuplicate on id collision.
	Create(ctx context.Context, job Job) (string, error)
	// Start transitions queued -> processing, setting StartedAt. No-op if
	// already processing.
	Start(ctx context.Context, jobID string) error
	// RecordProgress atomically increments Completed (and Successful when ok),
	// appends to Errors when !ok (bounded, oldest evicted), and recomputes
	// CurrentTicker/CurrentIndex/UpdatedAt/Progress.
	RecordProgress(ctx context.Context, jobID string, index int, ticker string, ok bool, failMsg string) error
	// Finalize transitions to cancelled or completed; only legal from processing.
	Finalize(ctx context.Context, jobID string, cancelled bool) error
	// Fail transitions a job straight to failed from any non-terminal state,
	// for controller-level faults that prevent completion (not per-ticker
	// faults). No-op if already terminal.
	Fail(ctx context.Context, jobID string, message string) error
	// RequestCancel sets CancelRequested=true. Returns ErrJobCancelInvalid
	// from terminal states.
	RequestCancel(ctx context.Context, jobID string) error
	// Status returns the current record or ErrJobNotFound.
	Status(ctx context.Context, jobID string) (Job, error)
	// ListWithFilters returns a page of jobs, optionally filtered by status.
	ListWithFilters(ctx context.Context, offset, limit int, search, status string) ([]Job, error)
	CountWithFilters(ctx context.Context, search, status string) (int64, error)
	CountByStatus(ctx context.Context, status JobStatus) (int64, error)
}

// ResultRepository is the result-store contract.
type ResultRepository interface {
	// Insert is write-only; rejects duplicate (ticker, job_id) with
	// ErrResultDuplicate.
	Insert(ctx context.Context, result AnalysisResult) (int64, error)
	// History returns the most recent limit records for ticker, newest first.
	History(ctx context.Context, ticker string, limit int) ([]AnalysisResult, error)
	// HistoryPaged returns a page plus total count for pagination.
	HistoryPaged(ctx context.Context, ticker string, offset, limit int, sortDesc bool) ([]AnalysisResult, int64, error)
}

// WatchlistRepository is the watchlist store contract.
type WatchlistRepository interface {
	Add(ctx context.Context, item WatchlistItem) (int64, error)
	Remove(ctx context.Context, ticker string) error
	List(ctx context.Context, offset, limit int) ([]WatchlistItem, int64, error)
	Get(ctx context.Context, ticker string) (WatchlistItem, error)
}

// StockRepository is the read-only ticker catalogue store.
type StockRepository interface {
	List(ctx context.Context, offset, limit int) ([]Stock, int64, error)
	AllTickers(ctx context.Context) ([]string, error)
}

// OHLCVBar is a single bar of open/high/low/close/volume data.
type OHLCVBar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// OHLCVFetcher is the external market-data collaborator:
// fetch(ticker, period) -> OHLCV | error.
type OHLCVFetcher interface {
	Fetch(ctx context.Context, ticker, period string) ([]OHLCVBar, error)
}

// UniverseProvider resolves the full recognized-ticker catalogue for
// "analyze all".
type UniverseProvider interface {
	AllTickers(ctx context.Context) ([]string, error)
}
