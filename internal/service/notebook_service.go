package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/ownership"
)

// NotebookService handles notebook operations on behalf of a principal.
type NotebookService struct {
	notebooks *ownership.Filter[*domain.Notebook]
	logger    zerolog.Logger
}

// NewNotebookService creates a new NotebookService.
func NewNotebookService(notebooks *ownership.Filter[*domain.Notebook], logger zerolog.Logger) *NotebookService {
	return &NotebookService{
		notebooks: notebooks,
		logger:    logger.With().Str("service", "notebook").Logger(),
	}
}

// CreateNotebookInput contains the data needed to create a notebook.
type CreateNotebookInput struct {
	Name        string
	Description string
}

// UpdateNotebookInput contains notebook changes. Nil fields are left unchanged.
type UpdateNotebookInput struct {
	Name        *string
	Description *string
	Archived    *bool
}

// ListNotebooksInput contains notebook list filters.
type ListNotebooksInput struct {
	ListInput
	Archived *bool
}

// Create creates a notebook owned by p.
func (s *NotebookService) Create(ctx context.Context, p domain.Principal, input CreateNotebookInput) (*domain.Notebook, error) {
	nb := domain.NewNotebook(input.Name, input.Description)
	if err := nb.Validate(); err != nil {
		return nil, err
	}

	if err := s.notebooks.Create(ctx, p, nb); err != nil {
		return nil, resourceError(s.logger, err, p, "create")
	}

	s.logger.Info().Str("user_id", p.String()).Str("notebook_id", nb.ID).Msg("notebook created")
	return nb, nil
}

// Get returns a notebook visible to p.
func (s *NotebookService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Notebook, error) {
	nb, err := s.notebooks.Get(ctx, p, id)
	if err != nil {
		return nil, resourceError(s.logger, err, p, "get")
	}
	return nb, nil
}

// List returns the notebooks visible to p.
func (s *NotebookService) List(ctx context.Context, p domain.Principal, input ListNotebooksInput) ([]*domain.Notebook, error) {
	opts, err := input.options()
	if err != nil {
		return nil, err
	}
	opts.Archived = input.Archived

	items, err := s.notebooks.List(ctx, p, opts)
	if err != nil {
		return nil, resourceError(s.logger, err, p, "list")
	}
	return items, nil
}

// Update applies input to a notebook p may modify.
func (s *NotebookService) Update(ctx context.Context, p domain.Principal, id string, input UpdateNotebookInput) (*domain.Notebook, error) {
	nb, err := s.notebooks.Update(ctx, p, id, func(nb *domain.Notebook) error {
		if input.Name != nil {
			nb.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			nb.Description = *input.Description
		}
		if input.Archived != nil {
			nb.Archived = *input.Archived
		}
		nb.UpdatedAt = time.Now().UTC()
		return nb.Validate()
	})
	if err != nil {
		return nil, resourceError(s.logger, err, p, "update")
	}
	return nb, nil
}

// Delete removes a notebook p may modify, together with its sources and notes.
func (s *NotebookService) Delete(ctx context.Context, p domain.Principal, id string) error {
	if err := s.notebooks.Delete(ctx, p, id); err != nil {
		return resourceError(s.logger, err, p, "delete")
	}
	s.logger.Info().Str("user_id", p.String()).Str("notebook_id", id).Msg("notebook deleted")
	return nil
}
