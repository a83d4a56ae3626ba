package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoteType distinguishes hand-written notes from generated ones.
type NoteType string

const (
	// NoteTypeHuman is a note written by the user.
	NoteTypeHuman NoteType = "human"

	// NoteTypeAI is a note produced by a model.
	NoteTypeAI NoteType = "ai"
)

// Valid reports whether the note type is known.
func (t NoteType) Valid() bool {
	return t == NoteTypeHuman || t == NoteTypeAI
}

// Note is a piece of text written into a notebook.
type Note struct {
	ID         string    `json:"id"`
	NotebookID string    `json:"notebook_id"`
	OwnerID    *string   `json:"owner_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	NoteType   NoteType  `json:"note_type"`
	CreatedAt  time.Time `json:"created"`
	UpdatedAt  time.Time `json:"updated"`
}

// NewNote creates a new Note in the given notebook.
// An empty note type defaults to human.
func NewNote(notebookID, title, content string, noteType NoteType) *Note {
	if noteType == "" {
		noteType = NoteTypeHuman
	}
	now := time.Now().UTC()
	return &Note{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		Title:      strings.TrimSpace(title),
		Content:    content,
		NoteType:   noteType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks the note fields.
func (n *Note) Validate() error {
	if n.NotebookID == "" {
		return ErrNotebookRequired
	}
	if len(n.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if !n.NoteType.Valid() {
		return ErrInvalidNoteType
	}
	return nil
}

func (n *Note) ResourceID() string     { return n.ID }
func (n *Note) Owner() *string         { return n.OwnerID }
func (n *Note) SetOwner(owner *string) { n.OwnerID = owner }

var _ OwnedResource = (*Note)(nil)
