package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

const sourceColumns = `id, notebook_id, owner_id, title, url, content, created_at, updated_at`

// sourceRepository implements repository.SourceRepository for SQLite.
type sourceRepository struct {
	db *DB
}

// NewSourceRepository creates a new SQLite source repository.
func NewSourceRepository(db *DB) repository.SourceRepository {
	return &sourceRepository{db: db}
}

// Create creates a new source.
func (r *sourceRepository) Create(ctx context.Context, s *domain.Source) error {
	query := `INSERT INTO sources (` + sourceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.NotebookID,
		nullString(s.OwnerID),
		s.Title,
		s.URL,
		s.Content,
		formatTime(s.CreatedAt),
		formatTime(s.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotebookNotFound
		}
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// GetByID retrieves a source by ID.
func (r *sourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = ?`

	s, err := scanSource(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

// List returns sources matching opts.
func (r *sourceRepository) List(ctx context.Context, opts repository.ResourceListOptions) ([]*domain.Source, error) {
	var q listQuery
	q.scope(opts.Scope)
	if opts.NotebookID != "" {
		q.where("(notebook_id = ? OR id IN (SELECT source_id FROM notebook_sources WHERE notebook_id = ?))",
			opts.NotebookID, opts.NotebookID)
	}
	query, args := q.build(`SELECT `+sourceColumns+` FROM sources`, "title", opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []*domain.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}
	return sources, nil
}

// Update updates an existing source.
func (r *sourceRepository) Update(ctx context.Context, s *domain.Source) error {
	query := `
		UPDATE sources
		SET notebook_id = ?, owner_id = ?, title = ?, url = ?, content = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		s.NotebookID,
		nullString(s.OwnerID),
		s.Title,
		s.URL,
		s.Content,
		formatTime(s.UpdatedAt),
		s.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotebookNotFound
		}
		return fmt.Errorf("failed to update source: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// Delete deletes a source by ID.
func (r *sourceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// AssignUnowned stamps ownerID on every source without an owner.
func (r *sourceRepository) AssignUnowned(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE sources SET owner_id = ? WHERE owner_id IS NULL`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to assign unowned sources: %w", err)
	}
	return result.RowsAffected()
}

func scanSource(row rowScanner) (*domain.Source, error) {
	s := &domain.Source{}
	var owner sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&s.ID, &s.NotebookID, &owner, &s.Title, &s.URL, &s.Content, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	s.OwnerID = stringPtr(owner)
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

// Ensure sourceRepository implements repository.SourceRepository.
var _ repository.SourceRepository = (*sourceRepository)(nil)
