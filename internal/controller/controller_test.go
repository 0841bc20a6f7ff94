package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/analysis"
	"github.com/stockanalysis/job-engine/internal/analysis/demofetch"
	"github.com/stockanalysis/job-engine/internal/controller"
	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/store/jobstore"
	"github.com/stockanalysis/job-engine/internal/store/resultstore"
)

type staticUniverse struct{ tickers []string }

func (u staticUniverse) AllTickers(context.Context) ([]string, error) { return u.tickers, nil }

func newTestController(t *testing.T, universe []string) (*controller.Controller, domain.JobRepository) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, ":memory:", storage.DefaultRetryConfig())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, db))

	jobs := jobstore.New(db, 1000)
	results := resultstore.New(db)
	orch := analysis.NewOrchestrator(demofetch.New(), analysis.DefaultRegistry())

	c := controller.New(jobs, results, staticUniverse{tickers: universe}, orch, controller.Config{
		WorkerPoolSize:   4,
		PerTickerTimeout: 2 * time.Second,
		BulkUniverseCap:  500,
		MaxTickers:       100,
	})
	return c, jobs
}

func waitTerminal(t *testing.T, jobs domain.JobRepository, jobID string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.Status(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach terminal state in time")
	return domain.Job{}
}

func TestSubmitRunsToCompletion(t *testing.T) {
	c, jobs := newTestController(t, nil)
	jobID, err := c.Submit(context.Background(), []string{"AAPL", "MSFT", "GOOG"}, domain.SourceWatchlist, analysis.DefaultConfig(), "test run")
	require.NoError(t, err)

	job := waitTerminal(t, jobs, jobID)
	require.Equal(t, domain.JobCompleted, job.Status)
	require.Equal(t, 3, job.Total)
	require.Equal(t, 3, job.Completed)
	require.Equal(t, 3, job.Successful)
}

func TestSubmitEmptyTickersRejectedForWatchlistSource(t *testing.T) {
	c, _ := newTestController(t, nil)
	_, err := c.Submit(context.Background(), nil, domain.SourceWatchlist, analysis.DefaultConfig(), "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSubmitBulkResolvesUniverse(t *testing.T) {
	c, jobs := newTestController(t, []string{"AAA", "BBB"})
	jobID, err := c.Submit(context.Background(), nil, domain.SourceBulk, analysis.DefaultConfig(), "bulk")
	require.NoError(t, err)

	job := waitTerminal(t, jobs, jobID)
	require.Equal(t, 2, job.Total)
}

func TestSubmitBulkRejectsOversizedUniverse(t *testing.T) {
	universe := make([]string, 501)
	for i := range universe {
		universe[i] = "T"
	}
	c, _ := newTestController(t, universe)
	_, err := c.Submit(context.Background(), nil, domain.SourceBulk, analysis.DefaultConfig(), "bulk")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCancelMarksJobCancelRequested(t *testing.T) {
	c, jobs := newTestController(t, nil)
	jobID, err := c.Submit(context.Background(), []string{"AAPL", "MSFT", "GOOG", "AMZN", "TSLA"}, domain.SourceWatchlist, analysis.DefaultConfig(), "")
	require.NoError(t, err)
	require.NoError(t, c.Cancel(context.Background(), jobID))

	job := waitTerminal(t, jobs, jobID)
	require.True(t, job.CancelRequested)
	require.Equal(t, domain.JobCancelled, job.Status)

	// Scenario 2: every unit dispatched before Cancel took effect either
	// lands as a success or a recorded error, none lost in flight, and the
	// total tracked never exceeds what was submitted.
	require.LessOrEqual(t, job.Completed, job.Total)
	require.Equal(t, job.Completed, job.Successful+len(job.Errors))
}
