package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/ownership"
)

// NoteService handles note operations on behalf of a principal.
type NoteService struct {
	notes     *ownership.Filter[*domain.Note]
	notebooks *ownership.Filter[*domain.Notebook]
	logger    zerolog.Logger
}

// NewNoteService creates a new NoteService.
func NewNoteService(
	notes *ownership.Filter[*domain.Note],
	notebooks *ownership.Filter[*domain.Notebook],
	logger zerolog.Logger,
) *NoteService {
	return &NoteService{
		notes:     notes,
		notebooks: notebooks,
		logger:    logger.With().Str("service", "note").Logger(),
	}
}

// CreateNoteInput contains the data needed to create a note.
type CreateNoteInput struct {
	NotebookID string
	Title      string
	Content    string
	NoteType   domain.NoteType
}

// UpdateNoteInput contains note changes. Nil fields are left unchanged.
type UpdateNoteInput struct {
	Title    *string
	Content  *string
	NoteType *domain.NoteType
}

// ListNotesInput contains note list filters.
type ListNotesInput struct {
	ListInput
	NotebookID string
}

// Create adds a note to a notebook readable by p. The note is owned by p.
func (s *NoteService) Create(ctx context.Context, p domain.Principal, input CreateNoteInput) (*domain.Note, error) {
	note := domain.NewNote(input.NotebookID, input.Title, input.Content, input.NoteType)
	if err := note.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.notebooks.Get(ctx, p, note.NotebookID); err != nil {
		return nil, resourceError(s.logger, err, p, "create")
	}

	if err := s.notes.Create(ctx, p, note); err != nil {
		return nil, resourceError(s.logger, err, p, "create")
	}

	s.logger.Info().
		Str("user_id", p.String()).
		Str("note_id", note.ID).
		Str("notebook_id", note.NotebookID).
		Msg("note created")
	return note, nil
}

// Get returns a note visible to p.
func (s *NoteService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Note, error) {
	note, err := s.notes.Get(ctx, p, id)
	if err != nil {
		return nil, resourceError(s.logger, err, p, "get")
	}
	return note, nil
}

// List returns the notes visible to p, optionally within one notebook.
func (s *NoteService) List(ctx context.Context, p domain.Principal, input ListNotesInput) ([]*domain.Note, error) {
	opts, err := input.options()
	if err != nil {
		return nil, err
	}

	if input.NotebookID != "" {
		if _, err := s.notebooks.Get(ctx, p, input.NotebookID); err != nil {
			return nil, resourceError(s.logger, err, p, "list")
		}
		opts.NotebookID = input.NotebookID
	}

	items, err := s.notes.List(ctx, p, opts)
	if err != nil {
		return nil, resourceError(s.logger, err, p, "list")
	}
	return items, nil
}

// Update applies input to a note p may modify.
func (s *NoteService) Update(ctx context.Context, p domain.Principal, id string, input UpdateNoteInput) (*domain.Note, error) {
	note, err := s.notes.Update(ctx, p, id, func(note *domain.Note) error {
		if input.Title != nil {
			note.Title = strings.TrimSpace(*input.Title)
		}
		if input.Content != nil {
			note.Content = *input.Content
		}
		if input.NoteType != nil {
			note.NoteType = *input.NoteType
		}
		note.UpdatedAt = time.Now().UTC()
		return note.Validate()
	})
	if err != nil {
		return nil, resourceError(s.logger, err, p, "update")
	}
	return note, nil
}

// Delete removes a note p may modify.
func (s *NoteService) Delete(ctx context.Context, p domain.Principal, id string) error {
	if err := s.notes.Delete(ctx, p, id); err != nil {
		return resourceError(s.logger, err, p, "delete")
	}
	s.logger.Info().Str("user_id", p.String()).Str("note_id", id).Msg("note deleted")
	return nil
}
