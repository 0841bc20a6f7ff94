package stockstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/store/stockstore"
)

func newTestDB(t *testing.T) storage.DB {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, ":memory:", storage.DefaultRetryConfig())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stocks.yaml")
	content := "stocks:\n  - ticker: AAA.NS\n    symbol: AAA\n    name: Alpha Ltd\n    sector: Energy\n  - ticker: BBB.NS\n    symbol: BBB\n    name: Beta Ltd\n    sector: Financials\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSeedFromYAMLAndList(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	path := writeFixture(t)

	n, err := stockstore.SeedFromYAML(ctx, db, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	store := stockstore.New(db)
	stocks, total, err := store.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, stocks, 2)

	tickers, err := store.AllTickers(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"AAA.NS", "BBB.NS"}, tickers)
}

func TestSeedFromYAMLIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	path := writeFixture(t)

	_, err := stockstore.SeedFromYAML(ctx, db, path)
	require.NoError(t, err)
	_, err = stockstore.SeedFromYAML(ctx, db, path)
	require.NoError(t, err)

	store := stockstore.New(db)
	_, total, err := store.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
}
