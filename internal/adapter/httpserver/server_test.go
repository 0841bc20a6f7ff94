package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/adapter/httpserver"
	"github.com/stockanalysis/job-engine/internal/analysis"
	"github.com/stockanalysis/job-engine/internal/analysis/demofetch"
	"github.com/stockanalysis/job-engine/internal/config"
	"github.com/stockanalysis/job-engine/internal/controller"
	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/platform/storage"
	"github.com/stockanalysis/job-engine/internal/service/ratelimiter"
	"github.com/stockanalysis/job-engine/internal/store/jobstore"
	"github.com/stockanalysis/job-engine/internal/store/resultstore"
	"github.com/stockanalysis/job-engine/internal/store/stockstore"
	"github.com/stockanalysis/job-engine/internal/store/watchliststore"
)

type staticUniverse struct{ tickers []string }

func (u staticUniverse) AllTickers(context.Context) ([]string, error) { return u.tickers, nil }

func newTestServer(t *testing.T) (http.Handler, domain.JobRepository) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, ":memory:", storage.DefaultRetryConfig())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, db))

	jobs := jobstore.New(db, 1000)
	results := resultstore.New(db)
	watchlist := watchliststore.New(db)
	stocks := stockstore.New(db)
	orch := analysis.NewOrchestrator(demofetch.New(), analysis.DefaultRegistry())

	ctrl := controller.New(jobs, results, staticUniverse{}, orch, controller.Config{
		WorkerPoolSize:   4,
		PerTickerTimeout: 2 * time.Second,
		BulkUniverseCap:  500,
		MaxTickers:       100,
	})

	cfg := config.Config{}
	limiter := ratelimiter.NewInMemoryLimiter(ratelimiter.BucketConfig{Capacity: 1000, RefillRate: 1000}, time.Minute)
	srv := httpserver.NewServer(cfg, ctrl, jobs, results, watchlist, stocks, limiter, func(context.Context) error { return nil })
	return srv.Routes(), jobs
}

func doRequest(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func waitJobTerminal(t *testing.T, jobs domain.JobRepository, jobID string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.Status(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach terminal state in time")
	return domain.Job{}
}

func TestAnalyzeHandlerHappyPath(t *testing.T) {
	h, jobs := newTestServer(t)

	rec := doRequest(h, http.MethodPost, "/api/analysis/analyze", map[string]any{
		"tickers": []string{"AAA", "BBB", "CCC"},
		"capital": 100000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "queued", resp["status"])
	jobID, _ := resp["job_id"].(string)
	require.NotEmpty(t, jobID)

	job := waitJobTerminal(t, jobs, jobID)
	require.Equal(t, domain.JobCompleted, job.Status)
	require.Equal(t, 3, job.Total)

	rec = doRequest(h, http.MethodGet, "/api/analysis/status/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "completed", status["status"])
}

func TestAnalyzeHandlerValidationBound(t *testing.T) {
	h, _ := newTestServer(t)

	tickers := make([]string, 101)
	for i := range tickers {
		tickers[i] = "T"
	}
	rec := doRequest(h, http.MethodPost, "/api/analysis/analyze", map[string]any{"tickers": tickers})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	errBody, _ := resp["error"].(map[string]any)
	require.Equal(t, "VALIDATION_ERROR", errBody["code"])
}

func TestStatusHandlerUnknownJob(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doRequest(h, http.MethodGet, "/api/analysis/status/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	errBody, _ := resp["error"].(map[string]any)
	require.Equal(t, "JOB_NOT_FOUND", errBody["code"])
}

func TestWatchlistDuplicateRejected(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doRequest(h, http.MethodPost, "/api/watchlist/", map[string]any{"ticker": "INFY"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(h, http.MethodPost, "/api/watchlist/", map[string]any{"ticker": "INFY"})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	errBody, _ := resp["error"].(map[string]any)
	require.Equal(t, "WATCHLIST_DUPLICATE", errBody["code"])
}

func TestBulkAnalysisRejectsOversizedUniverse(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, ":memory:", storage.DefaultRetryConfig())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, db))

	jobs := jobstore.New(db, 1000)
	results := resultstore.New(db)
	watchlist := watchliststore.New(db)
	stocks := stockstore.New(db)
	orch := analysis.NewOrchestrator(demofetch.New(), analysis.DefaultRegistry())

	universe := make([]string, 501)
	for i := range universe {
		universe[i] = "T"
	}
	ctrl := controller.New(jobs, results, staticUniverse{tickers: universe}, orch, controller.Config{BulkUniverseCap: 500})
	limiter := ratelimiter.NewInMemoryLimiter(ratelimiter.BucketConfig{Capacity: 1000, RefillRate: 1000}, time.Minute)
	srv := httpserver.NewServer(config.Config{}, ctrl, jobs, results, watchlist, stocks, limiter, func(context.Context) error { return nil })

	rec := doRequest(srv.Routes(), http.MethodPost, "/api/stocks/analyze-all-stocks", map[string]any{"symbols": []string{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRejectsMissingKey(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, ":memory:", storage.DefaultRetryConfig())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(ctx, db))

	jobs := jobstore.New(db, 1000)
	results := resultstore.New(db)
	watchlist := watchliststore.New(db)
	stocks := stockstore.New(db)
	orch := analysis.NewOrchestrator(demofetch.New(), analysis.DefaultRegistry())
	ctrl := controller.New(jobs, results, staticUniverse{}, orch, controller.Config{})
	limiter := ratelimiter.NewInMemoryLimiter(ratelimiter.BucketConfig{Capacity: 1000, RefillRate: 1000}, time.Minute)
	srv := httpserver.NewServer(config.Config{MasterAPIKey: "secret"}, ctrl, jobs, results, watchlist, stocks, limiter, func(context.Context) error { return nil })

	rec := doRequest(srv.Routes(), http.MethodGet, "/api/stocks/all", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthHandlerOK(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doRequest(h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
