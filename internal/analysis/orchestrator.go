package analysis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stockanalysis/job-engine/internal/domain"
)

// Orchestrator runs the single-ticker analysis pipeline.
type Orchestrator struct {
	fetcher  domain.OHLCVFetcher
	registry *Registry
}

// NewOrchestrator constructs an Orchestrator over the given OHLCV fetcher
// and indicator registry.
func NewOrchestrator(fetcher domain.OHLCVFetcher, registry *Registry) *Orchestrator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Orchestrator{fetcher: fetcher, registry: registry}
}

// Analyze runs the full pipeline for one ticker: fetch -> indicators ->
// aggregate -> verdict -> entry/stop/target. Per-ticker faults
// (domain.ErrNoData, *domain.IndicatorFault, domain.ErrAggregationFault)
// are returned as data, never panics; the scheduler's caller records them
// against the job without terminating it.
func (o *Orchestrator) Analyze(ctx context.Context, ticker string, cfg Config) (ResultDocument, error) {
	tracer := otel.Tracer("analysis.orchestrator")
	ctx, span := tracer.Start(ctx, "Orchestrator.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", ticker))

	period := cfg.DataPeriod
	if period == "" {
		period = DefaultConfig().DataPeriod
	}

	bars, err := o.fetcher.Fetch(ctx, ticker, period)
	if err != nil {
		span.RecordError(err)
		return ResultDocument{}, fmt.Errorf("%w: %s: %v", domain.ErrNoData, ticker, err)
	}
	minBars := cfg.MinBarsRequired
	if minBars <= 0 {
		minBars = DefaultConfig().MinBarsRequired
	}
	if len(bars) < minBars {
		return ResultDocument{}, fmt.Errorf("%w: %s: got %d bars, need %d", domain.ErrNoData, ticker, len(bars), minBars)
	}

	weights := cfg.CategoryWeights
	if weights == (CategoryWeights{}) {
		weights = DefaultCategoryWeights()
	}

	var votes []Vote
	var weightedSum, weightTotal float64
	for _, ind := range o.registry.Enabled(cfg) {
		vote, err := ind.Evaluate(bars, Params{Lookback: minBars})
		if err != nil {
			span.RecordError(err)
			return ResultDocument{}, &domain.IndicatorFault{Name: ind.Name(), Err: err}
		}
		votes = append(votes, vote)
		w := weights.forCategory(ind.Category())
		weightedSum += w * float64(vote.Direction) * vote.Confidence
		weightTotal += w
	}
	if weightTotal == 0 {
		return ResultDocument{}, fmt.Errorf("%w: %s: no weighted indicators evaluated", domain.ErrAggregationFault, ticker)
	}

	// Normalize weighted sum (range [-1,1]) into a [0,100] score.
	normalized := weightedSum / weightTotal
	score := clampScore(50 + normalized*50)
	verdict := ScoreToVerdict(score)

	entry := bars[len(bars)-1].Close
	atr := averageTrueRange(bars[max(0, len(bars)-15):])
	stopMultiple := cfg.StopATRMultiple
	if stopMultiple <= 0 {
		stopMultiple = DefaultConfig().StopATRMultiple
	}
	fixedPct := cfg.StopFixedPercent
	if fixedPct <= 0 {
		fixedPct = DefaultConfig().StopFixedPercent
	}
	riskReward := cfg.RiskRewardRatio
	if riskReward <= 0 {
		riskReward = DefaultConfig().RiskRewardRatio
	}

	var stop float64
	if atr > 0 {
		stop = entry - stopMultiple*atr
	} else {
		stop = entry * (1 - fixedPct)
	}
	target := entry + riskReward*(entry-stop)

	return ResultDocument{
		Ticker:  ticker,
		Score:   score,
		Verdict: verdict,
		Votes:   votes,
		Entry:   entry,
		Stop:    stop,
		Target:  target,
	}, nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
