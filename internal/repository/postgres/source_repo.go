package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

const sourceColumns = `id::text, notebook_id::text, owner_id::text, title, url, content, created_at, updated_at`

// sourceRepository implements repository.SourceRepository for PostgreSQL.
type sourceRepository struct {
	db *DB
}

// NewSourceRepository creates a new PostgreSQL source repository.
func NewSourceRepository(db *DB) repository.SourceRepository {
	return &sourceRepository{db: db}
}

// Create creates a new source.
func (r *sourceRepository) Create(ctx context.Context, s *domain.Source) error {
	if !validID(s.NotebookID) {
		return domain.ErrNotebookNotFound
	}

	query := `
		INSERT INTO sources (id, notebook_id, owner_id, title, url, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		s.ID,
		s.NotebookID,
		s.OwnerID,
		s.Title,
		s.URL,
		s.Content,
		s.CreatedAt,
		s.UpdatedAt,
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
	if !validID(id) {
		return nil, domain.ErrSourceNotFound
	}

	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	s, err := scanSource(r.db.Pool.QueryRow(ctx, query, id))
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
	if opts.NotebookID != "" && !validID(opts.NotebookID) {
		return nil, nil
	}

	var q listQuery
	q.scope(opts.Scope)
	if opts.NotebookID != "" {
		q.where("(notebook_id = $%[1]d OR id IN (SELECT source_id FROM notebook_sources WHERE notebook_id = $%[1]d))",
			opts.NotebookID)
	}
	query, args := q.build(`SELECT `+sourceColumns+` FROM sources`, "title", opts)

	rows, err := r.db.Pool.Query(ctx, query, args...)
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
	if !validID(s.ID) {
		return domain.ErrSourceNotFound
	}
	if !validID(s.NotebookID) {
		return domain.ErrNotebookNotFound
	}

	query := `
		UPDATE sources
		SET notebook_id = $2, owner_id = $3, title = $4, url = $5, content = $6, updated_at = $7
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		s.ID,
		s.NotebookID,
		s.OwnerID,
		s.Title,
		s.URL,
		s.Content,
		s.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotebookNotFound
		}
		return fmt.Errorf("failed to update source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// Delete deletes a source by ID.
func (r *sourceRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrSourceNotFound
	}

	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// AssignUnowned stamps ownerID on every source without an owner.
func (r *sourceRepository) AssignUnowned(ctx context.Context, ownerID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE sources SET owner_id = $1 WHERE owner_id IS NULL`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to assign unowned sources: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSource(row pgx.Row) (*domain.Source, error) {
	s := &domain.Source{}
	if err := row.Scan(&s.ID, &s.NotebookID, &s.OwnerID, &s.Title, &s.URL, &s.Content, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// Ensure sourceRepository implements repository.SourceRepository.
var _ repository.SourceRepository = (*sourceRepository)(nil)
