package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// notebookSourceRepository implements repository.NotebookSourceRepository for SQLite.
type notebookSourceRepository struct {
	db *DB
}

// NewNotebookSourceRepository creates a new SQLite notebook/source link repository.
func NewNotebookSourceRepository(db *DB) repository.NotebookSourceRepository {
	return &notebookSourceRepository{db: db}
}

// Link adds the source to the notebook.
func (r *notebookSourceRepository) Link(ctx context.Context, notebookID, sourceID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notebook_sources (notebook_id, source_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(notebook_id, source_id) DO NOTHING`,
		notebookID, sourceID, formatTime(at))
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
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM notebook_sources WHERE notebook_id = ? AND source_id = ?`, notebookID, sourceID)
	if err != nil {
		return fmt.Errorf("failed to unlink source: %w", err)
	}
	return nil
}

// IsLinked reports whether the link exists.
func (r *notebookSourceRepository) IsLinked(ctx context.Context, notebookID, sourceID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM notebook_sources WHERE notebook_id = ? AND source_id = ?)`,
		notebookID, sourceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source link: %w", err)
	}
	return exists != 0, nil
}

// missingSide names the side of a failed link that does not exist.
func (r *notebookSourceRepository) missingSide(ctx context.Context, notebookID string) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM notebooks WHERE id = ?)`, notebookID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check notebook: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotebookNotFound
	}
	return domain.ErrSourceNotFound
}

// Ensure notebookSourceRepository implements repository.NotebookSourceRepository.
var _ repository.NotebookSourceRepository = (*notebookSourceRepository)(nil)
