package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

const notebookColumns = `id, owner_id, name, description, archived, created_at, updated_at`

// notebookSelect reads notebooks together with their source and note counts.
const notebookSelect = `SELECT ` + notebookColumns + `,
	(SELECT COUNT(*) FROM sources s
		WHERE s.notebook_id = notebooks.id
		   OR s.id IN (SELECT l.source_id FROM notebook_sources l WHERE l.notebook_id = notebooks.id)),
	(SELECT COUNT(*) FROM notes n WHERE n.notebook_id = notebooks.id)
	FROM notebooks`

// notebookRepository implements repository.NotebookRepository for SQLite.
type notebookRepository struct {
	db *DB
}

// NewNotebookRepository creates a new SQLite notebook repository.
func NewNotebookRepository(db *DB) repository.NotebookRepository {
	return &notebookRepository{db: db}
}

// Create creates a new notebook.
func (r *notebookRepository) Create(ctx context.Context, nb *domain.Notebook) error {
	query := `INSERT INTO notebooks (` + notebookColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		nb.ID,
		nullString(nb.OwnerID),
		nb.Name,
		nb.Description,
		boolToInt(nb.Archived),
		formatTime(nb.CreatedAt),
		formatTime(nb.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create notebook: %w", err)
	}
	return nil
}

// GetByID retrieves a notebook by ID.
func (r *notebookRepository) GetByID(ctx context.Context, id string) (*domain.Notebook, error) {
	query := notebookSelect + ` WHERE id = ?`

	nb, err := scanNotebook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotebookNotFound
		}
		return nil, fmt.Errorf("failed to get notebook: %w", err)
	}
	return nb, nil
}

// List returns notebooks matching opts.
func (r *notebookRepository) List(ctx context.Context, opts repository.ResourceListOptions) ([]*domain.Notebook, error) {
	var q listQuery
	q.scope(opts.Scope)
	if opts.Archived != nil {
		q.where("archived = ?", boolToInt(*opts.Archived))
	}
	query, args := q.build(notebookSelect, "name", opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notebooks: %w", err)
	}
	defer rows.Close()

	var notebooks []*domain.Notebook
	for rows.Next() {
		nb, err := scanNotebook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notebook: %w", err)
		}
		notebooks = append(notebooks, nb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notebooks: %w", err)
	}
	return notebooks, nil
}

// Update updates an existing notebook.
func (r *notebookRepository) Update(ctx context.Context, nb *domain.Notebook) error {
	query := `
		UPDATE notebooks
		SET owner_id = ?, name = ?, description = ?, archived = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullString(nb.OwnerID),
		nb.Name,
		nb.Description,
		boolToInt(nb.Archived),
		formatTime(nb.UpdatedAt),
		nb.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update notebook: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotebookNotFound
	}
	return nil
}

// Delete deletes a notebook; its sources, notes and links cascade.
func (r *notebookRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notebooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notebook: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotebookNotFound
	}
	return nil
}

// AssignUnowned stamps ownerID on every notebook without an owner.
func (r *notebookRepository) AssignUnowned(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE notebooks SET owner_id = ? WHERE owner_id IS NULL`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to assign unowned notebooks: %w", err)
	}
	return result.RowsAffected()
}

func scanNotebook(row rowScanner) (*domain.Notebook, error) {
	nb := &domain.Notebook{}
	var owner sql.NullString
	var archived int
	var createdAt, updatedAt string

	if err := row.Scan(&nb.ID, &owner, &nb.Name, &nb.Description, &archived, &createdAt, &updatedAt,
		&nb.SourceCount, &nb.NoteCount); err != nil {
		return nil, err
	}

	nb.OwnerID = stringPtr(owner)
	nb.Archived = archived != 0
	nb.CreatedAt = parseTime(createdAt)
	nb.UpdatedAt = parseTime(updatedAt)
	return nb, nil
}

// Ensure notebookRepository implements repository.NotebookRepository.
var _ repository.NotebookRepository = (*notebookRepository)(nil)
