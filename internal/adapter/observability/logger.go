package observability

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stockanalysis/job-engine/internal/config"
)

// SetupLogger configures a JSON slog logger with environment fields. Output
// goes to LogDir/engine.log (appended, created if absent) when cfg.LogDir is
// set, and to stdout otherwise or when that file cannot be opened.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	// In dev, show debug level; in prod, default to info
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
	}
	var out io.Writer = os.Stdout
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err == nil {
			if f, err := os.OpenFile(filepath.Join(cfg.LogDir, "engine.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
				out = f
			}
		}
	}
	h := slog.NewJSONHandler(out, opts)
	logger := slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
	return logger
}
