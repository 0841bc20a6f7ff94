package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/analysis"
	"github.com/stockanalysis/job-engine/internal/analysis/demofetch"
	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/scheduler"
)

func TestRunCompletesAllUnits(t *testing.T) {
	orch := analysis.NewOrchestrator(demofetch.New(), analysis.DefaultRegistry())
	pool := scheduler.New(orch, 3, analysis.DefaultConfig())

	var mu sync.Mutex
	seen := map[string]bool{}
	counts := pool.Run(context.Background(), []string{"AAPL", "MSFT", "GOOG", "AMZN"}, time.Second,
		func(index int, ticker string, ok bool, failMessage string, doc analysis.ResultDocument) {
			mu.Lock()
			defer mu.Unlock()
			seen[ticker] = ok
			require.Equal(t, ticker, doc.Ticker)
		})

	require.Equal(t, 4, counts.Total)
	require.Equal(t, 4, counts.Successful)
	require.Equal(t, 0, counts.Failed)
	require.False(t, counts.Cancelled)
	require.Len(t, seen, 4)
}

type timeoutFetcher struct{}

func (timeoutFetcher) Fetch(ctx context.Context, ticker, period string) ([]domain.OHLCVBar, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(200 * time.Millisecond):
		return nil, errors.New("unreachable")
	}
}

func TestRunRecordsPerTickerTimeout(t *testing.T) {
	orch := analysis.NewOrchestrator(timeoutFetcher{}, analysis.DefaultRegistry())
	pool := scheduler.New(orch, 2, analysis.DefaultConfig())

	var failMsg string
	counts := pool.Run(context.Background(), []string{"SLOW"}, 10*time.Millisecond,
		func(index int, ticker string, ok bool, msg string, doc analysis.ResultDocument) { failMsg = msg })

	require.Equal(t, 1, counts.Total)
	require.Equal(t, 0, counts.Successful)
	require.Equal(t, 1, counts.Failed)
	require.Contains(t, failMsg, "SLOW")
}

func TestRunStopsDispatchingOnCancelledContext(t *testing.T) {
	orch := analysis.NewOrchestrator(demofetch.New(), analysis.DefaultRegistry())
	pool := scheduler.New(orch, 1, analysis.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	counts := pool.Run(ctx, []string{"AAPL", "MSFT", "GOOG"}, time.Second,
		func(index int, ticker string, ok bool, msg string, doc analysis.ResultDocument) { calls++ })

	require.True(t, counts.Cancelled)
	require.Less(t, calls, 3)
}
