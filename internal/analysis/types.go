// Package analysis implements the single-ticker orchestration pipeline
// (fetch OHLCV -> run indicators -> aggregate -> verdict -> entry/stop/
// target), built around an indicator port so the real strategy math stays
// pluggable.
package analysis

import "github.com/stockanalysis/job-engine/internal/domain"

// Category buckets an indicator for weighted aggregation.
type Category string

const (
	CategoryTrend      Category = "trend"
	CategoryMomentum   Category = "momentum"
	CategoryVolatility Category = "volatility"
	CategoryVolume     Category = "volume"
)

// Vote is one indicator's signal: direction in {-1,0,+1} and a confidence
// in [0,1].
type Vote struct {
	Indicator  string  `json:"indicator"`
	Category   string  `json:"category"`
	Direction  int     `json:"vote"`
	Confidence float64 `json:"confidence"`
}

// Params configures a single indicator evaluation; this carries only what
// the reference indicator set needs.
type Params struct {
	Lookback int
}

// Indicator is the out-of-scope external collaborator's interface: a pure
// function (OHLCV, params) -> {vote, confidence, category}.
type Indicator interface {
	Name() string
	Category() Category
	Evaluate(bars []domain.OHLCVBar, params Params) (Vote, error)
}

// Verdict is the categorical label derived from Score.
type Verdict string

const (
	VerdictStrongBuy  Verdict = "Strong Buy"
	VerdictBuy        Verdict = "Buy"
	VerdictNeutral    Verdict = "Neutral"
	VerdictSell       Verdict = "Sell"
	VerdictStrongSell Verdict = "Strong Sell"
)

// ScoreToVerdict maps score -> verdict by fixed thresholds, ties resolved
// upward.
func ScoreToVerdict(score float64) Verdict {
	switch {
	case score >= 80:
		return VerdictStrongBuy
	case score >= 60:
		return VerdictBuy
	case score > 40:
		return VerdictNeutral
	case score >= 20:
		return VerdictSell
	default:
		return VerdictStrongSell
	}
}

// ResultDocument is the serialized payload stored in
// domain.AnalysisResult.RawData: score, verdict, per-indicator votes, and
// entry/stop/target levels.
type ResultDocument struct {
	Ticker  string  `json:"ticker"`
	Score   float64 `json:"score"`
	Verdict Verdict `json:"verdict"`
	Votes   []Vote  `json:"votes"`
	Entry   float64 `json:"entry"`
	Stop    float64 `json:"stop"`
	Target  float64 `json:"target"`
}

// CategoryWeights configures the per-category weighting consumed by
// aggregation.
type CategoryWeights struct {
	Trend      float64
	Momentum   float64
	Volatility float64
	Volume     float64
}

// DefaultCategoryWeights mirrors a balanced strategy: trend and momentum
// weighted slightly higher than volatility/volume.
func DefaultCategoryWeights() CategoryWeights {
	return CategoryWeights{Trend: 0.35, Momentum: 0.3, Volatility: 0.2, Volume: 0.15}
}

func (w CategoryWeights) forCategory(c Category) float64 {
	switch c {
	case CategoryTrend:
		return w.Trend
	case CategoryMomentum:
		return w.Momentum
	case CategoryVolatility:
		return w.Volatility
	case CategoryVolume:
		return w.Volume
	default:
		return 0
	}
}

// Config parameters for a single Analyze call.
type Config struct {
	DataPeriod         string
	EnabledIndicators  map[string]bool
	CategoryWeights    CategoryWeights
	RiskRewardRatio    float64
	StopATRMultiple    float64
	StopFixedPercent   float64
	MinBarsRequired    int
}

// DefaultConfig returns sane defaults (risk_reward_ratio in 1..3).
func DefaultConfig() Config {
	return Config{
		DataPeriod:       "6mo",
		CategoryWeights:  DefaultCategoryWeights(),
		RiskRewardRatio:  2.0,
		StopATRMultiple:  2.0,
		StopFixedPercent: 0.05,
		MinBarsRequired:  15,
	}
}
