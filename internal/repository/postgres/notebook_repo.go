package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

const notebookColumns = `id::text, owner_id::text, name, description, archived, created_at, updated_at`

// notebookSelect reads notebooks together with their source and note counts.
const notebookSelect = `SELECT ` + notebookColumns + `,
	(SELECT COUNT(*) FROM sources s
		WHERE s.notebook_id = notebooks.id
		   OR s.id IN (SELECT l.source_id FROM notebook_sources l WHERE l.notebook_id = notebooks.id)),
	(SELECT COUNT(*) FROM notes n WHERE n.notebook_id = notebooks.id)
	FROM notebooks`

// notebookRepository implements repository.NotebookRepository for PostgreSQL.
type notebookRepository struct {
	db *DB
}

// NewNotebookRepository creates a new PostgreSQL notebook repository.
func NewNotebookRepository(db *DB) repository.NotebookRepository {
	return &notebookRepository{db: db}
}

// Create creates a new notebook.
func (r *notebookRepository) Create(ctx context.Context, nb *domain.Notebook) error {
	query := `
		INSERT INTO notebooks (id, owner_id, name, description, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		nb.ID,
		nb.OwnerID,
		nb.Name,
		nb.Description,
		nb.Archived,
		nb.CreatedAt,
		nb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notebook: %w", err)
	}
	return nil
}

// GetByID retrieves a notebook by ID.
func (r *notebookRepository) GetByID(ctx context.Context, id string) (*domain.Notebook, error) {
	if !validID(id) {
		return nil, domain.ErrNotebookNotFound
	}

	query := notebookSelect + ` WHERE id = $1`

	nb, err := scanNotebook(r.db.Pool.QueryRow(ctx, query, id))
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
		q.where("archived = $%d", *opts.Archived)
	}
	query, args := q.build(notebookSelect, "name", opts)

	rows, err := r.db.Pool.Query(ctx, query, args...)
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
	if !validID(nb.ID) {
		return domain.ErrNotebookNotFound
	}

	query := `
		UPDATE notebooks
		SET owner_id = $2, name = $3, description = $4, archived = $5, updated_at = $6
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		nb.ID,
		nb.OwnerID,
		nb.Name,
		nb.Description,
		nb.Archived,
		nb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update notebook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotebookNotFound
	}
	return nil
}

// Delete deletes a notebook; its sources, notes and links cascade.
func (r *notebookRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotebookNotFound
	}

	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM notebooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notebook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotebookNotFound
	}
	return nil
}

// AssignUnowned stamps ownerID on every notebook without an owner.
func (r *notebookRepository) AssignUnowned(ctx context.Context, ownerID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE notebooks SET owner_id = $1 WHERE owner_id IS NULL`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to assign unowned notebooks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanNotebook(row pgx.Row) (*domain.Notebook, error) {
	nb := &domain.Notebook{}
	if err := row.Scan(&nb.ID, &nb.OwnerID, &nb.Name, &nb.Description, &nb.Archived, &nb.CreatedAt, &nb.UpdatedAt,
		&nb.SourceCount, &nb.NoteCount); err != nil {
		return nil, err
	}
	nb.CreatedAt = nb.CreatedAt.UTC()
	nb.UpdatedAt = nb.UpdatedAt.UTC()
	return nb, nil
}

// Ensure notebookRepository implements repository.NotebookRepository.
var _ repository.NotebookRepository = (*notebookRepository)(nil)
