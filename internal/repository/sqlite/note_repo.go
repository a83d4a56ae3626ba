package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

const noteColumns = `id, notebook_id, owner_id, title, content, note_type, created_at, updated_at`

// noteRepository implements repository.NoteRepository for SQLite.
type noteRepository struct {
	db *DB
}

// NewNoteRepository creates a new SQLite note repository.
func NewNoteRepository(db *DB) repository.NoteRepository {
	return &noteRepository{db: db}
}

// Create creates a new note.
func (r *noteRepository) Create(ctx context.Context, n *domain.Note) error {
	query := `INSERT INTO notes (` + noteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.NotebookID,
		nullString(n.OwnerID),
		n.Title,
		n.Content,
		string(n.NoteType),
		formatTime(n.CreatedAt),
		formatTime(n.UpdatedAt),
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
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`

	n, err := scanNote(r.db.QueryRowContext(ctx, query, id))
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
	var q listQuery
	q.scope(opts.Scope)
	if opts.NotebookID != "" {
		q.where("notebook_id = ?", opts.NotebookID)
	}
	query, args := q.build(`SELECT `+noteColumns+` FROM notes`, "title", opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	query := `
		UPDATE notes
		SET notebook_id = ?, owner_id = ?, title = ?, content = ?, note_type = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		n.NotebookID,
		nullString(n.OwnerID),
		n.Title,
		n.Content,
		string(n.NoteType),
		formatTime(n.UpdatedAt),
		n.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotebookNotFound
		}
		return fmt.Errorf("failed to update note: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

// Delete deletes a note by ID.
func (r *noteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

// AssignUnowned stamps ownerID on every note without an owner.
func (r *noteRepository) AssignUnowned(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE notes SET owner_id = ? WHERE owner_id IS NULL`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to assign unowned notes: %w", err)
	}
	return result.RowsAffected()
}

func scanNote(row rowScanner) (*domain.Note, error) {
	n := &domain.Note{}
	var owner sql.NullString
	var noteType, createdAt, updatedAt string

	if err := row.Scan(&n.ID, &n.NotebookID, &owner, &n.Title, &n.Content, &noteType, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	n.OwnerID = stringPtr(owner)
	n.NoteType = domain.NoteType(noteType)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return n, nil
}

// Ensure noteRepository implements repository.NoteRepository.
var _ repository.NoteRepository = (*noteRepository)(nil)
