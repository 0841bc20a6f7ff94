package resultstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/store/resultstore"
)

func newTestStore(t *testing.T) *resultstore.Store {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, ":memory:", storage.DefaultRetryConfig())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, db))
	t.Cleanup(func() { _ = db.Close() })
	return resultstore.New(db)
}

func TestInsertAndHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	jobID := "job-1"

	_, err := store.Insert(ctx, domain.AnalysisResult{
		Ticker: "AAA", Symbol: "AAA", JobID: &jobID, Source: domain.SourceBulk, RawData: []byte(`{"score":70}`),
	})
	require.NoError(t, err)

	results, err := store.History(ctx, "AAA", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "AAA", results[0].Ticker)
	require.Equal(t, domain.SourceBulk, results[0].Source)
}

func TestInsertDuplicateTickerJobRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	jobID := "job-1"

	_, err := store.Insert(ctx, domain.AnalysisResult{Ticker: "AAA", Symbol: "AAA", JobID: &jobID, Source: domain.SourceBulk, RawData: []byte(`{}`)})
	require.NoError(t, err)

	_, err = store.Insert(ctx, domain.AnalysisResult{Ticker: "AAA", Symbol: "AAA", JobID: &jobID, Source: domain.SourceBulk, RawData: []byte(`{}`)})
	require.ErrorIs(t, err, domain.ErrResultDuplicate)
}

func TestHistoryPagedPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		jobID := "job-" + string(rune('a'+i))
		_, err := store.Insert(ctx, domain.AnalysisResult{Ticker: "BBB", Symbol: "BBB", JobID: &jobID, Source: domain.SourceWatchlist, RawData: []byte(`{}`)})
		require.NoError(t, err)
	}

	page, total, err := store.HistoryPaged(ctx, "BBB", 0, 2, true)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, page, 2)
}
