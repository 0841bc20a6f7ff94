package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/analysis"
	"github.com/stockanalysis/job-engine/internal/analysis/demofetch"
	"github.com/stockanalysis/job-engine/internal/domain"
)

func TestAnalyzeProducesResultDocument(t *testing.T) {
	orch := analysis.NewOrchestrator(demofetch.New(), analysis.DefaultRegistry())
	result, err := orch.Analyze(context.Background(), "AAPL", analysis.DefaultConfig())
	require.NoError(t, err)

	require.Equal(t, "AAPL", result.Ticker)
	require.GreaterOrEqual(t, result.Score, 0.0)
	require.LessOrEqual(t, result.Score, 100.0)
	require.NotEmpty(t, result.Votes)
	require.Greater(t, result.Entry, 0.0)
	require.Less(t, result.Stop, result.Entry)
	require.Greater(t, result.Target, result.Entry)
}

func TestAnalyzeIsDeterministicForSameTicker(t *testing.T) {
	orch := analysis.NewOrchestrator(demofetch.New(), analysis.DefaultRegistry())
	a, err := orch.Analyze(context.Background(), "MSFT", analysis.DefaultConfig())
	require.NoError(t, err)
	b, err := orch.Analyze(context.Background(), "MSFT", analysis.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

type emptyFetcher struct{}

func (emptyFetcher) Fetch(ctx context.Context, ticker, period string) ([]domain.OHLCVBar, error) {
	return nil, nil
}

func TestAnalyzeNoDataWhenFetchReturnsEmpty(t *testing.T) {
	orch := analysis.NewOrchestrator(emptyFetcher{}, analysis.DefaultRegistry())
	_, err := orch.Analyze(context.Background(), "XYZ", analysis.DefaultConfig())
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrNoData))
}

func TestScoreToVerdictThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  analysis.Verdict
	}{
		{80, analysis.VerdictStrongBuy},
		{60, analysis.VerdictBuy},
		{41, analysis.VerdictNeutral},
		{20, analysis.VerdictSell},
		{19.9, analysis.VerdictStrongSell},
	}
	for _, c := range cases {
		require.Equal(t, c.want, analysis.ScoreToVerdict(c.score), "score=%v", c.score)
	}
}
