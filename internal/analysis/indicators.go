package analysis

import (
	"fmt"

	"github.com/stockanalysis/job-engine/internal/domain"
)

// Registry holds the enabled indicator set for one orchestrator instance.
// Production strategy packages implement Indicator and register here
// without touching the scheduler or controller.
type Registry struct {
	indicators []Indicator
}

// NewRegistry constructs a registry from an explicit indicator list.
func NewRegistry(indicators ...Indicator) *Registry {
	return &Registry{indicators: indicators}
}

// DefaultRegistry returns the reference indicator set: a deterministic
// stand-in sufficient to exercise aggregation, verdict-mapping and
// entry/stop/target math end-to-end, with the real indicator math treated
// as an external collaborator behind the Indicator interface.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&smaConsensusIndicator{},
		&rsiStyleIndicator{},
		&atrVolatilityIndicator{},
		&volumeAverageIndicator{},
	)
}

// Enabled returns the subset of the registry active for cfg.
func (r *Registry) Enabled(cfg Config) []Indicator {
	if len(cfg.EnabledIndicators) == 0 {
		return r.indicators
	}
	var out []Indicator
	for _, ind := range r.indicators {
		if enabled, ok := cfg.EnabledIndicators[ind.Name()]; !ok || enabled {
			out = append(out, ind)
		}
	}
	return out
}

// smaConsensusIndicator votes trend direction from a short vs. long simple
// moving-average crossover.
type smaConsensusIndicator struct{}

func (smaConsensusIndicator) Name() string       { return "sma_crossover" }
func (smaConsensusIndicator) Category() Category { return CategoryTrend }

func (smaConsensusIndicator) Evaluate(bars []domain.OHLCVBar, params Params) (Vote, error) {
	const shortN, longN = 5, 20
	if len(bars) < longN {
		return Vote{}, fmt.Errorf("sma_crossover: need %d bars, have %d", longN, len(bars))
	}
	short := sma(bars, shortN)
	long := sma(bars, longN)
	if long == 0 {
		return Vote{}, fmt.Errorf("sma_crossover: degenerate long average")
	}
	spread := (short - long) / long
	return Vote{
		Indicator:  "sma_crossover",
		Category:   string(CategoryTrend),
		Direction:  directionFromSpread(spread, 0.01),
		Confidence: confidenceFromSpread(spread),
	}, nil
}

// rsiStyleIndicator votes momentum direction from the ratio of average
// gains to average losses over the lookback window (an RSI-style
// oscillator, not the exact RSI formula, since the indicator math kernels
// are out of scope).
type rsiStyleIndicator struct{}

func (rsiStyleIndicator) Name() string       { return "momentum_oscillator" }
func (rsiStyleIndicator) Category() Category { return CategoryMomentum }

func (rsiStyleIndicator) Evaluate(bars []domain.OHLCVBar, params Params) (Vote, error) {
	const window = 14
	if len(bars) < window+1 {
		return Vote{}, fmt.Errorf("momentum_oscillator: need %d bars, have %d", window+1, len(bars))
	}
	var gain, loss float64
	for i := len(bars) - window; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta >= 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	if gain+loss == 0 {
		return Vote{Indicator: "momentum_oscillator", Category: string(CategoryMomentum), Direction: 0, Confidence: 0}, nil
	}
	rs := (gain - loss) / (gain + loss) // in [-1, 1]
	return Vote{
		Indicator:  "momentum_oscillator",
		Category:   string(CategoryMomentum),
		Direction:  directionFromSpread(rs, 0.1),
		Confidence: confidenceFromSpread(rs),
	}, nil
}

// atrVolatilityIndicator votes based on whether recent true range is
// contracting (favorable, mild positive vote) or expanding (unfavorable).
type atrVolatilityIndicator struct{}

func (atrVolatilityIndicator) Name() string       { return "atr_volatility" }
func (atrVolatilityIndicator) Category() Category { return CategoryVolatility }

func (atrVolatilityIndicator) Evaluate(bars []domain.OHLCVBar, params Params) (Vote, error) {
	const window = 14
	if len(bars) < window*2 {
		return Vote{}, fmt.Errorf("atr_volatility: need %d bars, have %d", window*2, len(bars))
	}
	recent := averageTrueRange(bars[len(bars)-window:])
	prior := averageTrueRange(bars[len(bars)-2*window : len(bars)-window])
	if prior == 0 {
		return Vote{Indicator: "atr_volatility", Category: string(CategoryVolatility), Direction: 0, Confidence: 0}, nil
	}
	spread := (prior - recent) / prior // positive => volatility contracting
	return Vote{
		Indicator:  "atr_volatility",
		Category:   string(CategoryVolatility),
		Direction:  directionFromSpread(spread, 0.05),
		Confidence: confidenceFromSpread(spread),
	}, nil
}

// volumeAverageIndicator votes based on whether recent volume exceeds its
// trailing average (participation confirming the move).
type volumeAverageIndicator struct{}

func (volumeAverageIndicator) Name() string       { return "volume_average" }
func (volumeAverageIndicator) Category() Category { return CategoryVolume }

func (volumeAverageIndicator) Evaluate(bars []domain.OHLCVBar, params Params) (Vote, error) {
	const window = 20
	if len(bars) < window {
		return Vote{}, fmt.Errorf("volume_average: need %d bars, have %d", window, len(bars))
	}
	var avg float64
	for _, b := range bars[len(bars)-window:] {
		avg += b.Volume
	}
	avg /= float64(window)
	if avg == 0 {
		return Vote{Indicator: "volume_average", Category: string(CategoryVolume), Direction: 0, Confidence: 0}, nil
	}
	latest := bars[len(bars)-1].Volume
	spread := (latest - avg) / avg
	return Vote{
		Indicator:  "volume_average",
		Category:   string(CategoryVolume),
		Direction:  directionFromSpread(spread, 0.1),
		Confidence: confidenceFromSpread(spread),
	}, nil
}

func sma(bars []domain.OHLCVBar, n int) float64 {
	var sum float64
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	return sum / float64(n)
}

func averageTrueRange(bars []domain.OHLCVBar) float64 {
	if len(bars) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(bars); i++ {
		high, low, prevClose := bars[i].High, bars[i].Low, bars[i-1].Close
		tr := high - low
		if hc := abs(high - prevClose); hc > tr {
			tr = hc
		}
		if lc := abs(low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(len(bars)-1)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func directionFromSpread(spread, threshold float64) int {
	switch {
	case spread > threshold:
		return 1
	case spread < -threshold:
		return -1
	default:
		return 0
	}
}

func confidenceFromSpread(spread float64) float64 {
	c := abs(spread)
	if c > 1 {
		c = 1
	}
	return c
}
