// Package storage opens the configured relational backend.
// Both PostgreSQL and the embedded SQLite store satisfy repository.Backend,
// so callers never branch on the driver after startup.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/config"
	"github.com/prn-tf/notebook-server/internal/repository"
	"github.com/prn-tf/notebook-server/internal/repository/postgres"
	"github.com/prn-tf/notebook-server/internal/repository/sqlite"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (repository.Backend, error) {
	logger = logger.With().Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverSQLite:
		db, err := sqlite.NewDB(ctx, SQLiteConfig(cfg), logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownDriver, cfg.Driver)
	}
}

// SQLiteConfig maps database settings onto the SQLite connection config.
// Zero values fall back to sqlite.DefaultConfig.
func SQLiteConfig(cfg config.DatabaseConfig) sqlite.Config {
	out := sqlite.DefaultConfig(cfg.Path)
	if cfg.JournalMode != "" {
		out.JournalMode = cfg.JournalMode
	}
	if cfg.BusyTimeout > 0 {
		out.BusyTimeout = cfg.BusyTimeout
	}
	if cfg.SynchronousMode != "" {
		out.SynchronousMode = cfg.SynchronousMode
	}
	return out
}
