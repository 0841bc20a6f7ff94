// Package demofetch provides a deterministic in-memory OHLCV fetcher, which
// cmd/server uses for every job (no live fetcher exists, and
// config.DataFetcherMode is not consulted): a hash-seeded generator stands
// in for an external data collaborator so the rest of the pipeline can be
// exercised end-to-end without a live dependency.
package demofetch

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"math"
	"time"

	"github.com/stockanalysis/job-engine/internal/domain"
)

// Fetcher deterministically synthesizes OHLCV bars from a hash of the
// ticker, so repeated requests for the same ticker are reproducible.
type Fetcher struct {
	Bars int // number of daily bars to synthesize per call, default 120
}

var _ domain.OHLCVFetcher = (*Fetcher)(nil)

// New constructs a demo Fetcher with the default bar count.
func New() *Fetcher { return &Fetcher{Bars: 120} }

// Fetch synthesizes period-independent OHLCV bars for ticker. period is
// accepted for interface parity with a live fetcher but does not change
// the synthesized series.
func (f *Fetcher) Fetch(ctx context.Context, ticker, period string) ([]domain.OHLCVBar, error) {
	n := f.Bars
	if n <= 0 {
		n = 120
	}

	seed := hashSeed(ticker)
	price := 100 + float64(seed%5000)/100 // base price in [100, 150)

	bars := make([]domain.OHLCVBar, 0, n)
	now := time.Now().UTC().Truncate(24 * time.Hour)
	x := seed
	for i := n - 1; i >= 0; i-- {
		x = lcgNext(x)
		drift := (normalize(x) - 0.5) * 2 // in [-1, 1]
		price *= 1 + drift*0.015
		if price < 1 {
			price = 1
		}

		x = lcgNext(x)
		spread := price * (0.005 + normalize(x)*0.01)
		high := price + spread
		low := price - spread
		if low < 0.01 {
			low = 0.01
		}

		x = lcgNext(x)
		volume := 1_000_000 + normalize(x)*4_000_000

		bars = append(bars, domain.OHLCVBar{
			Time:   now.AddDate(0, 0, -i),
			Open:   price - spread/2,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: math.Round(volume),
		})
	}
	return bars, nil
}

func hashSeed(s string) uint32 {
	h := sha1.Sum([]byte(s))
	return binary.BigEndian.Uint32(h[:4])
}

func lcgNext(x uint32) uint32 {
	const a = 1664525
	const c = 1013904223
	return uint32(uint64(a)*uint64(x) + uint64(c))
}

func normalize(x uint32) float64 {
	return float64(x) / float64(^uint32(0))
}
