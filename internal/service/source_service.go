package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/ownership"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// SourceService handles source operations on behalf of a principal.
type SourceService struct {
	sources   *ownership.Filter[*domain.Source]
	notebooks *ownership.Filter[*domain.Notebook]
	links     repository.NotebookSourceRepository
	logger    zerolog.Logger
}

// NewSourceService creates a new SourceService.
func NewSourceService(
	sources *ownership.Filter[*domain.Source],
	notebooks *ownership.Filter[*domain.Notebook],
	links repository.NotebookSourceRepository,
	logger zerolog.Logger,
) *SourceService {
	return &SourceService{
		sources:   sources,
		notebooks: notebooks,
		links:     links,
		logger:    logger.With().Str("service", "source").Logger(),
	}
}

// CreateSourceInput contains the data needed to create a source.
type CreateSourceInput struct {
	NotebookID string
	Title      string
	URL        string
	Content    string
}

// UpdateSourceInput contains source changes. Nil fields are left unchanged.
type UpdateSourceInput struct {
	NotebookID *string
	Title      *string
	URL        *string
	Content    *string
}

// ListSourcesInput contains source list filters. NotebookID matches sources
// created in the notebook and sources linked to it.
type ListSourcesInput struct {
	ListInput
	NotebookID string
}

// Create adds a source to a notebook readable by p. The source is owned by p.
func (s *SourceService) Create(ctx context.Context, p domain.Principal, input CreateSourceInput) (*domain.Source, error) {
	src := domain.NewSource(input.NotebookID, input.Title, input.URL, input.Content)
	if err := src.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.notebooks.Get(ctx, p, src.NotebookID); err != nil {
		return nil, resourceError(s.logger, err, p, "create")
	}

	if err := s.sources.Create(ctx, p, src); err != nil {
		return nil, resourceError(s.logger, err, p, "create")
	}

	s.logger.Info().
		Str("user_id", p.String()).
		Str("source_id", src.ID).
		Str("notebook_id", src.NotebookID).
		Msg("source created")
	return src, nil
}

// Get returns a source visible to p.
func (s *SourceService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Source, error) {
	src, err := s.sources.Get(ctx, p, id)
	if err != nil {
		return nil, resourceError(s.logger, err, p, "get")
	}
	return src, nil
}

// List returns the sources visible to p, optionally within one notebook.
func (s *SourceService) List(ctx context.Context, p domain.Principal, input ListSourcesInput) ([]*domain.Source, error) {
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

	items, err := s.sources.List(ctx, p, opts)
	if err != nil {
		return nil, resourceError(s.logger, err, p, "list")
	}
	return items, nil
}

// Update applies input to a source p may modify. Moving the source
// requires the target notebook to be readable by p.
func (s *SourceService) Update(ctx context.Context, p domain.Principal, id string, input UpdateSourceInput) (*domain.Source, error) {
	if input.NotebookID != nil {
		if _, err := s.notebooks.Get(ctx, p, *input.NotebookID); err != nil {
			return nil, resourceError(s.logger, err, p, "update")
		}
	}

	src, err := s.sources.Update(ctx, p, id, func(src *domain.Source) error {
		if input.NotebookID != nil {
			src.NotebookID = *input.NotebookID
		}
		if input.Title != nil {
			src.Title = strings.TrimSpace(*input.Title)
		}
		if input.URL != nil {
			src.URL = strings.TrimSpace(*input.URL)
		}
		if input.Content != nil {
			src.Content = *input.Content
		}
		src.UpdatedAt = time.Now().UTC()
		return src.Validate()
	})
	if err != nil {
		return nil, resourceError(s.logger, err, p, "update")
	}
	return src, nil
}

// Delete removes a source p may modify.
func (s *SourceService) Delete(ctx context.Context, p domain.Principal, id string) error {
	if err := s.sources.Delete(ctx, p, id); err != nil {
		return resourceError(s.logger, err, p, "delete")
	}
	s.logger.Info().Str("user_id", p.String()).Str("source_id", id).Msg("source deleted")
	return nil
}

// AddToNotebook links an existing source into another notebook. p must be
// allowed to modify both. Linking a source to the notebook it was created
// in, or linking it twice, succeeds without change.
func (s *SourceService) AddToNotebook(ctx context.Context, p domain.Principal, notebookID, sourceID string) error {
	if _, err := s.notebooks.GetForWrite(ctx, p, notebookID); err != nil {
		return resourceError(s.logger, err, p, "link")
	}
	src, err := s.sources.GetForWrite(ctx, p, sourceID)
	if err != nil {
		return resourceError(s.logger, err, p, "link")
	}
	if src.NotebookID == notebookID {
		return nil
	}

	if err := s.links.Link(ctx, notebookID, sourceID, time.Now().UTC()); err != nil {
		return resourceError(s.logger, err, p, "link")
	}

	s.logger.Info().
		Str("user_id", p.String()).
		Str("source_id", sourceID).
		Str("notebook_id", notebookID).
		Msg("source linked")
	return nil
}

// RemoveFromNotebook removes a link made by AddToNotebook. p must be allowed
// to modify the notebook. Removing a link that does not exist succeeds; a
// source cannot be removed from the notebook it was created in.
func (s *SourceService) RemoveFromNotebook(ctx context.Context, p domain.Principal, notebookID, sourceID string) error {
	if _, err := s.notebooks.GetForWrite(ctx, p, notebookID); err != nil {
		return resourceError(s.logger, err, p, "unlink")
	}

	src, err := s.sources.Get(ctx, p, sourceID)
	switch {
	case err == nil:
		if src.NotebookID == notebookID {
			return domain.ErrSourceHomeNotebook
		}
	case !errors.Is(err, domain.ErrSourceNotFound):
		return resourceError(s.logger, err, p, "unlink")
	}

	if err := s.links.Unlink(ctx, notebookID, sourceID); err != nil {
		return resourceError(s.logger, err, p, "unlink")
	}

	s.logger.Info().
		Str("user_id", p.String()).
		Str("source_id", sourceID).
		Str("notebook_id", notebookID).
		Msg("source unlinked")
	return nil
}
