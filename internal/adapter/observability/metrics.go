package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// JobsEnqueuedTotal counts jobs enqueued by source (watchlist/bulk).
	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of analysis jobs enqueued",
		},
		[]string{"source"},
	)
	// JobsProcessing is a gauge of jobs currently processing by source.
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of analysis jobs currently processing",
		},
		[]string{"source"},
	)
	// JobsCompletedTotal counts jobs completed by source.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of analysis jobs completed",
		},
		[]string{"source"},
	)
	// JobsFailedTotal counts jobs that ended in the failed state by source.
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of analysis jobs that failed",
		},
		[]string{"source"},
	)
	// JobsCancelledTotal counts jobs that ended cancelled by source.
	JobsCancelledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_cancelled_total",
			Help: "Total number of analysis jobs cancelled",
		},
		[]string{"source"},
	)
	// JobDuration records wall-clock job duration from start to terminal state.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Analysis job duration in seconds, start to terminal state",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)

	// WorkerPoolActive is a gauge of in-flight per-ticker analyses across all
	// running jobs, bounded by the configured worker pool size.
	WorkerPoolActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_active",
			Help: "Number of ticker analyses currently executing across the worker pool",
		},
	)
	// TickersAnalyzedTotal counts per-ticker analysis outcomes.
	TickersAnalyzedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickers_analyzed_total",
			Help: "Total number of per-ticker analyses by outcome",
		},
		[]string{"outcome"},
	)

	// RateLimitDeniedTotal counts requests rejected by the rate limiter.
	RateLimitDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Total number of requests denied by the rate limiter",
		},
		[]string{"route"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobsCancelledTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(WorkerPoolActive)
	prometheus.MustRegister(TickersAnalyzedTotal)
	prometheus.MustRegister(RateLimitDeniedTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// EnqueueJob increments the enqueued jobs counter for the given source.
func EnqueueJob(source string) {
	JobsEnqueuedTotal.WithLabelValues(source).Inc()
}

// StartProcessingJob increments the processing gauge for the given source.
func StartProcessingJob(source string) {
	JobsProcessing.WithLabelValues(source).Inc()
}

// CompleteJob marks a job complete: decrements the processing gauge,
// increments the completed counter, and records its duration.
func CompleteJob(source string, duration time.Duration) {
	JobsProcessing.WithLabelValues(source).Dec()
	JobsCompletedTotal.WithLabelValues(source).Inc()
	JobDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// FailJob marks a job failed: decrements the processing gauge, increments
// the failed counter, and records its duration.
func FailJob(source string, duration time.Duration) {
	JobsProcessing.WithLabelValues(source).Dec()
	JobsFailedTotal.WithLabelValues(source).Inc()
	JobDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// CancelJob marks a job cancelled: decrements the processing gauge,
// increments the cancelled counter, and records its duration.
func CancelJob(source string, duration time.Duration) {
	JobsProcessing.WithLabelValues(source).Dec()
	JobsCancelledTotal.WithLabelValues(source).Inc()
	JobDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordTickerOutcome records one per-ticker analysis outcome ("ok" or
// "error").
func RecordTickerOutcome(outcome string) {
	TickersAnalyzedTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimitDenied records a request rejected by the rate limiter.
func RecordRateLimitDenied(route string) {
	RateLimitDeniedTotal.WithLabelValues(route).Inc()
}
