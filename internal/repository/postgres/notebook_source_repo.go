package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// notebookSourceRepository implements repository.NotebookSourceRepository for PostgreSQL.
type notebookSourceRepository struct {
	db *DB
}

// NewNotebookSourceRepository creates a new PostgreSQL notebook/source link repository.
func NewNotebookSourceRepository(db *DB) repository.NotebookSourceRepository {
	return &notebookSourceRepository{db: db}
}

// Link adds the source to the notebook.
func (r *notebookSourceRepository) Link(ctx context.Context, notebookID, sourceID string, at time.Time) error {
	if !validID(notebookID) {
		return domain.ErrNotebookNotFound
	}
	if !validID(sourceID) {
		return domain.ErrSourceNotFound
	}

	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO notebook_sources (notebook_id, source_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (notebook_id, source_id) DO NOTHING`,
		notebookID, sourceID, at.UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return r.missingSide(ctx, notebookID)
		}
		return fmt.Errorf("failed to link source: %w", err)
	}
	return nil
}

// Unlink removes the link.
func (r *notebookSourceRepository) Unlink(ctx context.Context, notebookID, sourceID string) error {
	if !validID(notebookID) || !validID(sourceID) {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM notebook_sources WHERE notebook_id = $1 AND source_id = $2`, notebookID, sourceID)
	if err != nil {
		return fmt.Errorf("failed to unlink source: %w", err)
	}
	return nil
}

// IsLinked reports whether the link exists.
func (r *notebookSourceRepository) IsLinked(ctx context.Context, notebookID, sourceID string) (bool, error) {
	if !validID(notebookID) || !validID(sourceID) {
		return false, nil
	}
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM notebook_sources WHERE notebook_id = $1 AND source_id = $2)`,
		notebookID, sourceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source link: %w", err)
	}
	return exists, nil
}

// missingSide names the side of a failed link that does not exist.
func (r *notebookSourceRepository) missingSide(ctx context.Context, notebookID string) error {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM notebooks WHERE id = $1)`, notebookID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check notebook: %w", err)
	}
	if !exists {
		return domain.ErrNotebookNotFound
	}
	return domain.ErrSourceNotFound
}

// Ensure notebookSourceRepository implements repository.NotebookSourceRepository.
var _ repository.NotebookSourceRepository = (*notebookSourceRepository)(nil)
