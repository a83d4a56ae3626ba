package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Schema versions shared by every backend's migration set.
const (
	// SchemaVersionInit creates notebooks, sources, notes and the links
	// between notebooks and sources.
	SchemaVersionInit int64 = 1

	// SchemaVersionOwnership adds users and owner_id on notebooks, sources and notes.
	SchemaVersionOwnership int64 = 2

	// SchemaVersionDataMigrations adds the data_migrations marker table.
	SchemaVersionDataMigrations int64 = 3
)

// MigrationStatus describes one schema migration.
type MigrationStatus struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// SchemaMigrator applies embedded SQL migrations with goose.
type SchemaMigrator struct {
	provider *goose.Provider
	logger   zerolog.Logger
}

// NewSchemaMigrator creates a migrator for the given dialect. fsys must
// contain goose-formatted .sql files at its root.
func NewSchemaMigrator(dialect goose.Dialect, db *sql.DB, fsys fs.FS, logger zerolog.Logger, opts ...goose.ProviderOption) (*SchemaMigrator, error) {
	provider, err := goose.NewProvider(dialect, db, fsys, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	if len(provider.ListSources()) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoMigrations, dialect)
	}
	return &SchemaMigrator{
		provider: provider,
		logger:   logger.With().Str("component", "schema").Str("dialect", string(dialect)).Logger(),
	}, nil
}

// Up applies every pending migration.
func (m *SchemaMigrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	m.logResults(results)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// UpTo applies pending migrations up to and including version.
func (m *SchemaMigrator) UpTo(ctx context.Context, version int64) error {
	results, err := m.provider.UpTo(ctx, version)
	m.logResults(results)
	if err != nil {
		return fmt.Errorf("failed to apply migrations up to version %d: %w", version, err)
	}
	return nil
}

// DownTo rolls back every migration above version.
func (m *SchemaMigrator) DownTo(ctx context.Context, version int64) error {
	results, err := m.provider.DownTo(ctx, version)
	m.logResults(results)
	if err != nil {
		return fmt.Errorf("failed to roll back migrations to version %d: %w", version, err)
	}
	return nil
}

// Version returns the current schema version, 0 for an empty database.
func (m *SchemaMigrator) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Status lists every known migration and whether it is applied.
func (m *SchemaMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version:   s.Source.Version,
			Name:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

func (m *SchemaMigrator) logResults(results []*goose.MigrationResult) {
	for _, r := range results {
		event := m.logger.Info()
		if r.Error != nil {
			event = m.logger.Error().Err(r.Error)
		}
		event.
			Int64("version", r.Source.Version).
			Str("direction", r.Direction).
			Dur("duration", r.Duration).
			Msg("schema migration")
	}
}
