// Package controller provides the public entrypoints to create, run, cancel
// and inspect jobs, binding the scheduler's fan-out to the job store and
// result store: validate, create the job row, hand off to a background
// task, return the job id immediately.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stockanalysis/job-engine/internal/adapter/observability"
	"github.com/stockanalysis/job-engine/internal/analysis"
	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/scheduler"
)

// Controller owns job submission, cancellation and the in-memory registry
// of cancel funcs for jobs it is actively running, guarded by a mutex like
// the rate limiter's own bookkeeping map.
type Controller struct {
	jobs         domain.JobRepository
	results      domain.ResultRepository
	universe     domain.UniverseProvider
	orchestrator *analysis.Orchestrator

	workerPoolSize   int
	perTickerTimeout time.Duration
	bulkUniverseCap  int
	maxTickers       int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Config bundles the tunables Controller needs beyond its collaborators.
type Config struct {
	WorkerPoolSize   int
	PerTickerTimeout time.Duration
	BulkUniverseCap  int
	MaxTickers       int
}

// New constructs a Controller.
func New(jobs domain.JobRepository, results domain.ResultRepository, universe domain.UniverseProvider, orchestrator *analysis.Orchestrator, cfg Config) *Controller {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 10
	}
	if cfg.PerTickerTimeout <= 0 {
		cfg.PerTickerTimeout = 60 * time.Second
	}
	if cfg.BulkUniverseCap <= 0 {
		cfg.BulkUniverseCap = 500
	}
	if cfg.MaxTickers <= 0 {
		cfg.MaxTickers = 100
	}
	return &Controller{
		jobs:             jobs,
		results:          results,
		universe:         universe,
		orchestrator:     orchestrator,
		workerPoolSize:   cfg.WorkerPoolSize,
		perTickerTimeout: cfg.PerTickerTimeout,
		bulkUniverseCap:  cfg.BulkUniverseCap,
		maxTickers:       cfg.MaxTickers,
		cancels:          make(map[string]context.CancelFunc),
	}
}

// Submit validates tickers, creates the job row, and launches the
// background run. For source == domain.SourceBulk, an empty tickers
// resolves the full catalogue via the injected UniverseProvider, rejected
// (not clamped) when it exceeds bulkUniverseCap.
func (c *Controller) Submit(ctx context.Context, tickers []string, source domain.AnalysisSource, cfg analysis.Config, description string) (string, error) {
	resolved := tickers
	if len(resolved) == 0 {
		if source != domain.SourceBulk {
			return "", fmt.Errorf("%w: tickers must not be empty", domain.ErrValidation)
		}
		all, err := c.universe.AllTickers(ctx)
		if err != nil {
			return "", fmt.Errorf("op=controller.Submit: resolve universe: %w", err)
		}
		if len(all) > c.bulkUniverseCap {
			return "", fmt.Errorf("%w: universe size %d exceeds cap %d", domain.ErrValidation, len(all), c.bulkUniverseCap)
		}
		resolved = all
	} else if len(resolved) > c.maxTickers {
		return "", fmt.Errorf("%w: %d tickers exceeds limit %d", domain.ErrValidation, len(resolved), c.maxTickers)
	}

	jobID := uuid.New().String()
	_, err := c.jobs.Create(ctx, domain.Job{
		ID:          jobID,
		Total:       len(resolved),
		Description: description,
	})
	if err != nil {
		return "", err
	}
	observability.EnqueueJob(string(source))

	runCtx := c.register(jobID)
	go c.run(runCtx, jobID, resolved, source, cfg)

	return jobID, nil
}

// Cancel requests cancellation of jobID: it sets cancel_requested on the
// persisted row (so a poller observes it even if this process didn't launch
// the job), returning the store's error unchanged when the job is already
// terminal or missing, and additionally cancels the in-memory context if
// this controller instance owns the running goroutine.
func (c *Controller) Cancel(ctx context.Context, jobID string) error {
	if err := c.jobs.RequestCancel(ctx, jobID); err != nil {
		return err
	}
	c.mu.Lock()
	cancel, ok := c.cancels[jobID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// register creates the per-job cancellable context a running goroutine
// dispatches work under (context.Background(), not the originating
// request's context, since the job runs on a background task independent
// of the originating request and must outlive it). The cancel func is
// registered so Cancel(jobID) can reach it while the goroutine is still
// running.
func (c *Controller) register(jobID string) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancels[jobID] = cancel
	c.mu.Unlock()
	return ctx
}

func (c *Controller) unregister(jobID string) {
	c.mu.Lock()
	delete(c.cancels, jobID)
	c.mu.Unlock()
}

// run is the detached background task: start the job, fan out via the
// scheduler, persist each successful result, finalize on drain. A
// controller-level panic or fault (not a per-ticker fault) marks the job
// failed via a deferred recover() converting the panic into a handled
// error.
func (c *Controller) run(runCtx context.Context, jobID string, tickers []string, source domain.AnalysisSource, cfg analysis.Config) {
	tracer := otel.Tracer("controller")
	ctx, span := tracer.Start(runCtx, "Controller.run")
	span.SetAttributes(attribute.String("job.id", jobID), attribute.Int("job.total", len(tickers)))
	defer span.End()

	start := time.Now()
	observability.StartProcessingJob(string(source))
	terminal := false
	defer func() {
		if !terminal {
			observability.FailJob(string(source), time.Since(start))
		}
	}()

	c.mu.Lock()
	cancel := c.cancels[jobID]
	c.mu.Unlock()
	defer func() {
		if cancel != nil {
			cancel()
		}
		c.unregister(jobID)
	}()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("controller panic: %v", r)
			slog.Error("controller.run panic", slog.String("job_id", jobID), slog.Any("panic", r))
			if err := c.jobs.Fail(context.Background(), jobID, msg); err != nil {
				slog.Error("controller.run: failed to mark job failed after panic", slog.String("job_id", jobID), slog.Any("error", err))
			}
		}
	}()

	if err := c.jobs.Start(ctx, jobID); err != nil {
		span.RecordError(err)
		_ = c.jobs.Fail(context.Background(), jobID, fmt.Sprintf("failed to start: %v", err))
		return
	}

	pool := scheduler.New(c.orchestrator, c.workerPoolSize, cfg)
	counts := pool.Run(ctx, tickers, c.perTickerTimeout, func(index int, ticker string, ok bool, failMessage string, doc analysis.ResultDocument) {
		if err := c.jobs.RecordProgress(context.Background(), jobID, index+1, ticker, ok, failMessage); err != nil {
			slog.Error("controller.run: record progress failed", slog.String("job_id", jobID), slog.String("ticker", ticker), slog.Any("error", err))
		}
		if !ok {
			observability.RecordTickerOutcome("error")
			return
		}
		observability.RecordTickerOutcome("ok")
		raw, err := encodeResult(doc)
		if err != nil {
			slog.Error("controller.run: encode result failed", slog.String("job_id", jobID), slog.String("ticker", ticker), slog.Any("error", err))
			return
		}
		jid := jobID
		if _, err := c.results.Insert(context.Background(), domain.AnalysisResult{
			Ticker:  ticker,
			Symbol:  ticker,
			JobID:   &jid,
			Source:  source,
			RawData: raw,
		}); err != nil {
			slog.Error("controller.run: insert result failed", slog.String("job_id", jobID), slog.String("ticker", ticker), slog.Any("error", err))
		}
	})

	span.SetAttributes(
		attribute.Int("job.successful", counts.Successful),
		attribute.Int("job.failed", counts.Failed),
		attribute.Bool("job.cancelled", counts.Cancelled),
	)

	// The persisted cancel flag decides the terminal state, so a cancel that
	// lands after the last dispatch still finalizes the job as cancelled.
	cancelled := counts.Cancelled
	if job, err := c.jobs.Status(context.Background(), jobID); err == nil && job.CancelRequested {
		cancelled = true
	}
	if err := c.jobs.Finalize(context.Background(), jobID, cancelled); err != nil {
		span.RecordError(err)
		slog.Error("controller.run: finalize failed", slog.String("job_id", jobID), slog.Any("error", err))
		return
	}
	terminal = true
	if cancelled {
		observability.CancelJob(string(source), time.Since(start))
	} else {
		observability.CompleteJob(string(source), time.Since(start))
	}
}

func encodeResult(doc analysis.ResultDocument) ([]byte, error) {
	return json.Marshal(doc)
}
