package storage

import (
	"context"

	"github.com/stockanalysis/job-engine/internal/config"
)

// Open selects the embedded or server backend by the presence of a
// connection URL in config.Config.DBURL.
func Open(ctx context.Context, cfg config.Config) (DB, error) {
	retry := RetryConfig{
		MaxAttempts:     cfg.DBRetryMaxAttempts,
		InitialInterval: cfg.DBRetryInitialInterval,
		Multiplier:      cfg.DBRetryMultiplier,
	}

	var db DB
	var err error
	if cfg.UseEmbeddedStore() {
		db, err = OpenSQLite(ctx, cfg.DBPath, retry)
	} else {
		db, err = OpenPostgres(ctx, cfg.DBURL, retry, int32(cfg.WorkerPoolSize)+5)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
