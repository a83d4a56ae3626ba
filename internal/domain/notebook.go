package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxTitleLength bounds notebook names and source/note titles.
const MaxTitleLength = 255

// OwnedResource is implemented by every entity carrying an owner column.
// A nil owner marks legacy data created before identities existed.
type OwnedResource interface {
	// ResourceID returns the entity's unique identifier.
	ResourceID() string

	// Owner returns the owning user id, or nil for legacy data.
	Owner() *string

	// SetOwner replaces the owning user id.
	SetOwner(owner *string)
}

// OwnedBy reports whether the resource is owned by userID.
func OwnedBy(r OwnedResource, userID string) bool {
	owner := r.Owner()
	return owner != nil && *owner == userID
}

// Notebook groups sources and notes.
type Notebook struct {
	// ID is the unique identifier for the notebook (UUID).
	ID string `json:"id"`

	// OwnerID is the owning user, nil for legacy notebooks.
	OwnerID *string `json:"owner_id"`

	// Name is the notebook title.
	Name string `json:"name"`

	// Description is free text.
	Description string `json:"description"`

	// Archived hides the notebook from default listings in clients.
	Archived bool `json:"archived"`

	// CreatedAt is the timestamp when the notebook was created.
	CreatedAt time.Time `json:"created"`

	// UpdatedAt is the timestamp when the notebook was last updated.
	UpdatedAt time.Time `json:"updated"`

	// SourceCount counts sources created in or linked to the notebook.
	// Filled on reads only.
	SourceCount int64 `json:"source_count"`

	// NoteCount counts the notebook's notes. Filled on reads only.
	NoteCount int64 `json:"note_count"`
}

// NewNotebook creates a new unarchived Notebook with a fresh ID.
func NewNotebook(name, description string) *Notebook {
	now := time.Now().UTC()
	return &Notebook{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the notebook fields.
func (n *Notebook) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return ErrNotebookNameRequired
	}
	if len(n.Name) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func (n *Notebook) ResourceID() string     { return n.ID }
func (n *Notebook) Owner() *string         { return n.OwnerID }
func (n *Notebook) SetOwner(owner *string) { n.OwnerID = owner }

var _ OwnedResource = (*Notebook)(nil)
