package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/notebook-server/internal/repository"
)

// dataMigrationRepository implements repository.DataMigrationRepository for SQLite.
type dataMigrationRepository struct {
	db *DB
}

// NewDataMigrationRepository creates a new SQLite data migration marker repository.
func NewDataMigrationRepository(db *DB) repository.DataMigrationRepository {
	return &dataMigrationRepository{db: db}
}

// IsApplied reports whether the named migration has run.
func (r *dataMigrationRepository) IsApplied(ctx context.Context, name string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM data_migrations WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check data migration %s: %w", name, err)
	}
	return exists != 0, nil
}

// MarkApplied records the named migration.
func (r *dataMigrationRepository) MarkApplied(ctx context.Context, name string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO data_migrations (name, applied_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to record data migration %s: %w", name, err)
	}
	return nil
}

// Remove deletes the marker.
func (r *dataMigrationRepository) Remove(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM data_migrations WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to remove data migration %s: %w", name, err)
	}
	return nil
}

// List returns every recorded marker.
func (r *dataMigrationRepository) List(ctx context.Context) ([]repository.DataMigration, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, applied_at FROM data_migrations ORDER BY applied_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data migrations: %w", err)
	}
	defer rows.Close()

	var out []repository.DataMigration
	for rows.Next() {
		var m repository.DataMigration
		var appliedAt string
		if err := rows.Scan(&m.Name, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan data migration: %w", err)
		}
		m.AppliedAt = parseTime(appliedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Ensure dataMigrationRepository implements repository.DataMigrationRepository.
var _ repository.DataMigrationRepository = (*dataMigrationRepository)(nil)
