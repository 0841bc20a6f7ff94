// Package scheduler provides bounded worker-pool fan-out over a ticker
// list: one goroutine per ticker, with concurrency capped by a semaphore
// channel of the pool's size, in-process and non-distributed.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/stockanalysis/job-engine/internal/adapter/observability"
	"github.com/stockanalysis/job-engine/internal/analysis"
	"github.com/stockanalysis/job-engine/internal/domain"
)

// ProgressFunc reports one completed unit. Calls are serialized by the
// dispatcher goroutine, so implementations need no internal locking. doc is
// the zero value when ok is false.
type ProgressFunc func(index int, ticker string, ok bool, failMessage string, doc analysis.ResultDocument)

// Counts summarizes a drained Run.
type Counts struct {
	Total      int
	Successful int
	Failed     int
	Cancelled  bool
}

// Pool runs a bounded number of concurrent Orchestrator.Analyze calls.
type Pool struct {
	Orchestrator *analysis.Orchestrator
	Size         int // max concurrent analyses; defaults to 10
	Config       analysis.Config
}

// New constructs a Pool. size <= 0 falls back to 10, matching
// config.WorkerPoolSize's own default.
func New(orch *analysis.Orchestrator, size int, cfg analysis.Config) *Pool {
	if size <= 0 {
		size = 10
	}
	return &Pool{Orchestrator: orch, Size: size, Config: cfg}
}

type unitResult struct {
	index       int
	ticker      string
	ok          bool
	failMessage string
	doc         analysis.ResultDocument
}

// Run fans out Analyze calls across tickers, bounded by p.Size concurrent
// workers, enforcing perItemTimeout per unit and serializing progress calls
// through a single dispatcher so the caller's callback (typically a
// jobstore.RecordProgress call) never races. Dispatch checks ctx.Err() at
// each boundary so a cancelled ctx stops launching new units while in-flight
// ones are still drained via the WaitGroup.
func (p *Pool) Run(ctx context.Context, tickers []string, perItemTimeout time.Duration, progress ProgressFunc) Counts {
	counts := Counts{Total: len(tickers)}
	if len(tickers) == 0 {
		return counts
	}

	workerPool := make(chan struct{}, p.Size)
	results := make(chan unitResult, len(tickers))
	var wg sync.WaitGroup

	for i, ticker := range tickers {
		if ctx.Err() != nil {
			counts.Cancelled = true
			break
		}

		select {
		case workerPool <- struct{}{}:
		case <-ctx.Done():
			counts.Cancelled = true
		}
		if counts.Cancelled {
			break
		}

		wg.Add(1)
		observability.WorkerPoolActive.Inc()
		go func(index int, ticker string) {
			defer wg.Done()
			defer observability.WorkerPoolActive.Dec()
			defer func() { <-workerPool }()
			results <- p.runOne(ctx, index, ticker, perItemTimeout)
		}(i, ticker)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.ok {
			counts.Successful++
		} else {
			counts.Failed++
		}
		progress(r.index, r.ticker, r.ok, r.failMessage, r.doc)
	}
	if ctx.Err() != nil {
		counts.Cancelled = true
	}
	return counts
}

// runOne analyzes one ticker under its own timeout, detached from ctx's
// cancellation (context.WithoutCancel) so a job-level Cancel only stops the
// dispatch loop from starting new units: a unit already in flight runs to
// completion or to its own perItemTimeout, never aborted mid-analysis.
// Values (the active trace span, notably) still flow through from ctx.
func (p *Pool) runOne(ctx context.Context, index int, ticker string, perItemTimeout time.Duration) unitResult {
	if perItemTimeout <= 0 {
		perItemTimeout = 60 * time.Second
	}
	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), perItemTimeout)
	defer cancel()

	doc, err := p.Orchestrator.Analyze(unitCtx, ticker, p.Config)
	if err != nil {
		if unitCtx.Err() == context.DeadlineExceeded {
			err = &domain.TickerTimeout{Ticker: ticker}
		}
		return unitResult{index: index, ticker: ticker, ok: false, failMessage: err.Error()}
	}
	return unitResult{index: index, ticker: ticker, ok: true, doc: doc}
}
