// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// DBURL is the connection URL for the server-backed store (PostgreSQL).
	// When empty, the engine selects the embedded single-file store instead.
	DBURL string `env:"DB_URL"`
	// DBPath is the file path used by the embedded store when DBURL is empty.
	DBPath string `env:"DB_PATH" envDefault:"./data/stockanalysis.db"`

	MasterAPIKey     string   `env:"MASTER_API_KEY"`
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"stock-analysis-engine"`

	LogDir string `env:"LOG_DIR" envDefault:""`

	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	// WorkerPoolSize bounds the number of tickers analyzed concurrently per job.
	WorkerPoolSize int `env:"WORKER_POOL_SIZE" envDefault:"10"`
	// PerTickerTimeout bounds a single ticker's end-to-end analysis.
	PerTickerTimeout time.Duration `env:"PER_TICKER_TIMEOUT" envDefault:"60s"`
	// JobErrorCapacity bounds the number of per-ticker errors retained on a job.
	JobErrorCapacity int `env:"JOB_ERROR_CAPACITY" envDefault:"1000"`
	// BulkUniverseCap bounds how many tickers an "analyze all" job may fan out to.
	BulkUniverseCap int `env:"BULK_UNIVERSE_CAP" envDefault:"500"`
	// MaxTickersPerRequest bounds an explicit (non-bulk) analyze request.
	MaxTickersPerRequest int `env:"MAX_TICKERS_PER_REQUEST" envDefault:"100"`

	// DataFetcherMode names "live" or "demo" OHLCV data; it is parsed but not
	// read elsewhere, and cmd/server always uses the demo fetcher.
	DataFetcherMode string `env:"DATA_FETCHER_MODE" envDefault:"demo"`
	// DataPeriod is parsed but not read elsewhere; analysis requests take their
	// lookback window from analysis.DefaultConfig.
	DataPeriod string `env:"DATA_PERIOD" envDefault:"6mo"`

	// StuckJobMaxProcessingAge bounds how long a job may sit in "processing"
	// (e.g. after a crash) before the sweeper marks it failed.
	StuckJobMaxProcessingAge time.Duration `env:"STUCK_JOB_MAX_PROCESSING_AGE" envDefault:"10m"`
	StuckJobSweepInterval    time.Duration `env:"STUCK_JOB_SWEEP_INTERVAL" envDefault:"1m"`

	// Rate limiting (in-process, per credential hash; see internal/service/ratelimiter).
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitPerMin  int  `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	// RateLimitRedisURL, when set, switches the limiter to a Redis-backed
	// implementation suitable for horizontal scaling (see DESIGN.md).
	RateLimitRedisURL string `env:"RATE_LIMIT_REDIS_URL"`

	// DB retry configuration (transient connection failures only).
	DBRetryMaxAttempts     int           `env:"DB_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	DBRetryInitialInterval time.Duration `env:"DB_RETRY_INITIAL_INTERVAL" envDefault:"2s"`
	DBRetryMultiplier      float64       `env:"DB_RETRY_MULTIPLIER" envDefault:"2.0"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// UseEmbeddedStore reports whether the configuration selects the embedded
// single-file store (no server connection URL configured).
func (c Config) UseEmbeddedStore() bool { return strings.TrimSpace(c.DBURL) == "" }

// UseDemoData reports whether the data fetcher should serve deterministic
// in-memory OHLCV instead of calling a live source.
func (c Config) UseDemoData() bool { return strings.ToLower(c.DataFetcherMode) != "live" }
