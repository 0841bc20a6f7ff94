package httpserver

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockanalysis/job-engine/internal/adapter/observability"
	"github.com/stockanalysis/job-engine/internal/config"
	"github.com/stockanalysis/job-engine/internal/controller"
	"github.com/stockanalysis/job-engine/internal/domain"
	"github.com/stockanalysis/job-engine/internal/service/ratelimiter"
)

// Server aggregates the dependencies shared across handlers.
type Server struct {
	Cfg        config.Config
	Controller *controller.Controller
	Jobs       domain.JobRepository
	Results    domain.ResultRepository
	Watchlist  domain.WatchlistRepository
	Stocks     domain.StockRepository
	Limiter    ratelimiter.Limiter
	DBCheck    func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handler dependencies wired.
func NewServer(cfg config.Config, ctrl *controller.Controller, jobs domain.JobRepository, results domain.ResultRepository, watchlist domain.WatchlistRepository, stocks domain.StockRepository, limiter ratelimiter.Limiter, dbCheck func(ctx context.Context) error) *Server {
	return &Server{
		Cfg:        cfg,
		Controller: ctrl,
		Jobs:       jobs,
		Results:    results,
		Watchlist:  watchlist,
		Stocks:     stocks,
		Limiter:    limiter,
		DBCheck:    dbCheck,
	}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// Routes builds the chi router with one route group per resource.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(Recoverer())
	r.Use(AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key", "If-None-Match"},
		AllowCredentials: false,
	}))

	r.Get("/health", s.HealthHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(Auth(s.Cfg.MasterAPIKey))
		r.Use(RateLimit(s.Limiter))

		r.Route("/analysis", func(r chi.Router) {
			r.Post("/analyze", s.AnalyzeHandler())
			r.Get("/status/{jobID}", s.StatusHandler())
			r.Post("/cancel/{jobID}", s.CancelHandler())
			r.Get("/history/{ticker}", s.HistoryHandler())
		})

		r.Route("/stocks", func(r chi.Router) {
			r.Post("/analyze-all-stocks", s.AnalyzeAllHandler())
			r.Get("/all", s.StocksAllHandler())
		})

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", s.WatchlistListHandler())
			r.Post("/", s.WatchlistAddHandler())
			r.Delete("/{ticker}", s.WatchlistRemoveHandler())
		})
	})

	return r
}

// corsOrigins drops a wildcard entry from the configured allow-list once
// the server is running in production.
func (s *Server) corsOrigins() []string {
	if !s.Cfg.IsProd() {
		return s.Cfg.CORSAllowOrigins
	}
	origins := make([]string, 0, len(s.Cfg.CORSAllowOrigins))
	for _, o := range s.Cfg.CORSAllowOrigins {
		if o != "*" {
			origins = append(origins, o)
		}
	}
	return origins
}
