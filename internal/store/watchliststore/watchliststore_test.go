package watchliststore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/store/watchliststore"
)

func newTestStore(t *testing.T) *watchliststore.Store {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, ":memory:", storage.DefaultRetryConfig())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, db))
	t.Cleanup(func() { _ = db.Close() })
	return watchliststore.New(db)
}

func TestAddGetRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Add(ctx, domain.WatchlistItem{Ticker: "INFY", Symbol: "INFY", Notes: "strong quarter"})
	require.NoError(t, err)

	item, err := store.Get(ctx, "INFY")
	require.NoError(t, err)
	require.Equal(t, "strong quarter", item.Notes)

	require.NoError(t, store.Remove(ctx, "INFY"))

	_, err = store.Get(ctx, "INFY")
	require.ErrorIs(t, err, domain.ErrWatchlistNotFound)
}

func TestAddDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Add(ctx, domain.WatchlistItem{Ticker: "INFY", Symbol: "INFY"})
	require.NoError(t, err)

	_, err = store.Add(ctx, domain.WatchlistItem{Ticker: "INFY", Symbol: "INFY"})
	require.ErrorIs(t, err, domain.ErrWatchlistDuplicate)
}

func TestRemoveNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	err := store.Remove(ctx, "NOPE")
	require.ErrorIs(t, err, domain.ErrWatchlistNotFound)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, ticker := range []string{"AAA", "BBB", "CCC"} {
		_, err := store.Add(ctx, domain.WatchlistItem{Ticker: ticker, Symbol: ticker})
		require.NoError(t, err)
	}

	items, total, err := store.List(ctx, 0, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, items, 2)
}
