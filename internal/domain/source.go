package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source is a piece of reference material attached to a notebook.
type Source struct {
	ID         string    `json:"id"`
	NotebookID string    `json:"notebook_id"`
	OwnerID    *string   `json:"owner_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created"`
	UpdatedAt  time.Time `json:"updated"`
}

// NewSource creates a new Source in the given notebook.
func NewSource(notebookID, title, url, content string) *Source {
	now := time.Now().UTC()
	return &Source{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		Title:      strings.TrimSpace(title),
		URL:        strings.TrimSpace(url),
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks the source fields.
func (s *Source) Validate() error {
	if s.NotebookID == "" {
		return ErrNotebookRequired
	}
	if len(s.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func (s *Source) ResourceID() string     { return s.ID }
func (s *Source) Owner() *string         { return s.OwnerID }
func (s *Source) SetOwner(owner *string) { s.OwnerID = owner }

var _ OwnedResource = (*Source)(nil)
