package jobstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/store/jobstore"
)

func newTestStore(t *testing.T) *jobstore.Store {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, ":memory:", storage.DefaultRetryConfig())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, db))
	t.Cleanup(func() { _ = db.Close() })
	return jobstore.New(db, 1000)
}

func TestCreateStartFinalizeLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	jobID := uuid.NewString()
	_, err := store.Create(ctx, domain.Job{ID: jobID, Total: 3, Message: "queued"})
	require.NoError(t, err)

	job, err := store.Status(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobQueued, job.Status)
	require.Equal(t, 3, job.Total)

	require.NoError(t, store.Start(ctx, jobID))
	job, err = store.Status(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobProcessing, job.Status)
	require.NotNil(t, job.StartedAt)

	require.NoError(t, store.RecordProgress(ctx, jobID, 1, "AAA", true, ""))
	require.NoError(t, store.RecordProgress(ctx, jobID, 2, "BBB", false, "no data"))
	require.NoError(t, store.RecordProgress(ctx, jobID, 3, "CCC", true, ""))

	job, err = store.Status(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, 3, job.Completed)
	require.Equal(t, 2, job.Successful)
	require.Len(t, job.Errors, 1)
	require.Equal(t, "BBB", job.Errors[0].Ticker)
	require.Equal(t, 100, job.Progress())

	require.NoError(t, store.Finalize(ctx, jobID, false))
	job, err = store.Status(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
}

func TestCreateDuplicateJobID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	jobID := uuid.NewString()

	_, err := store.Create(ctx, domain.Job{ID: jobID, Total: 1})
	require.NoError(t, err)

	_, err = store.Create(ctx, domain.Job{ID: jobID, Total: 1})
	require.ErrorIs(t, err, domain.ErrJobDuplicate)
}

func TestStatusNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.Status(ctx, "does-not-exist")
	require.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestRequestCancelInvalidFromTerminalState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	jobID := uuid.NewString()

	_, err := store.Create(ctx, domain.Job{ID: jobID, Total: 1})
	require.NoError(t, err)
	require.NoError(t, store.Start(ctx, jobID))
	require.NoError(t, store.RecordProgress(ctx, jobID, 1, "AAA", true, ""))
	require.NoError(t, store.Finalize(ctx, jobID, false))

	err = store.RequestCancel(ctx, jobID)
	require.ErrorIs(t, err, domain.ErrJobCancelInvalid)
}

func TestRequestCancelFromQueued(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	jobID := uuid.NewString()

	_, err := store.Create(ctx, domain.Job{ID: jobID, Total: 1})
	require.NoError(t, err)

	require.NoError(t, store.RequestCancel(ctx, jobID))
	job, err := store.Status(ctx, jobID)
	require.NoError(t, err)
	require.True(t, job.CancelRequested)
}
