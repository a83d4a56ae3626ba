package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

const noteColumns = `id::text, notebook_id::text, owner_id::text, title, content, note_type, created_at, updated_at`

// noteRepository implements repository.NoteRepository for PostgreSQL.
type noteRepository struct {
	db *DB
}

// NewNoteRepository creates a new PostgreSQL note repository.
func NewNoteRepository(db *DB) repository.NoteRepository {
	return &noteRepository{db: db}
}

// Create creates a new note.
func (r *noteRepository) Create(ctx context.Context, n *domain.Note) error {
	if !validID(n.NotebookID) {
		return domain.ErrNotebookNotFound
	}

	query := `
		INSERT INTO notes (id, notebook_id, owner_id, title, content, note_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		n.ID,
		n.NotebookID,
		n.OwnerID,
		n.Title,
		n.Content,
		string(n.NoteType),
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotebookNotFound
		}
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// GetByID retrieves a note by ID.
func (r *noteRepository) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	if !validID(id) {
		return nil, domain.ErrNoteNotFound
	}

	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1`

	n, err := scanNote(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

// List returns notes matching opts.
func (r *noteRepository) List(ctx context.Context, opts repository.ResourceListOptions) ([]*domain.Note, error) {
	if opts.NotebookID != "" && !validID(opts.NotebookID) {
		return nil, nil
	}

	var q listQuery
	q.scope(opts.Scope)
	if opts.NotebookID != "" {
		q.where("notebook_id = $%d", opts.NotebookID)
	}
	query, args := q.build(`SELECT `+noteColumns+` FROM notes`, "title", opts)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

// Update updates an existing note.
func (r *noteRepository) Update(ctx context.Context, n *domain.Note) error {
	if !validID(n.ID) {
		return domain.ErrNoteNotFound
	}
	if !validID(n.NotebookID) {
		return domain.ErrNotebookNotFound
	}

	query := `
		UPDATE notes
		SET notebook_id = $2, owner_id = $3, title = $4, content = $5, note_type = $6, updated_at = $7
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		n.ID,
		n.NotebookID,
		n.OwnerID,
		n.Title,
		n.Content,
		string(n.NoteType),
		n.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotebookNotFound
		}
		return fmt.Errorf("failed to update note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

// Delete deletes a note by ID.
func (r *noteRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNoteNotFound
	}

	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

// AssignUnowned stamps ownerID on every note without an owner.
func (r *noteRepository) AssignUnowned(ctx context.Context, ownerID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE notes SET owner_id = $1 WHERE owner_id IS NULL`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to assign unowned notes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanNote(row pgx.Row) (*domain.Note, error) {
	n := &domain.Note{}
	var noteType string
	if err := row.Scan(&n.ID, &n.NotebookID, &n.OwnerID, &n.Title, &n.Content, &noteType, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.NoteType = domain.NoteType(noteType)
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}

// Ensure noteRepository implements repository.NoteRepository.
var _ repository.NoteRepository = (*noteRepository)(nil)
