package service

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// AccessRecorder receives ownership denials.
type AccessRecorder interface {
	RecordAccessDenied(resource string)
}

// ListInput contains ordering and pagination shared by resource listings.
//
// OrderBy is a sort field optionally followed by "asc" or "desc", for
// example "name asc". An empty OrderBy lists the most recently updated
// first. A non-nil Descending overrides any direction in OrderBy.
type ListInput struct {
	OrderBy    string
	Descending *bool
	Limit      int
	Offset     int
}

func (in ListInput) options() (repository.ResourceListOptions, error) {
	field, desc, err := parseOrderBy(in.OrderBy)
	if err != nil {
		return repository.ResourceListOptions{}, err
	}
	if in.Descending != nil {
		desc = *in.Descending
	}
	if in.Limit < 0 || in.Offset < 0 {
		return repository.ResourceListOptions{}, ErrInvalidPaging
	}
	return repository.ResourceListOptions{
		OrderBy:    field,
		Descending: desc,
		Limit:      in.Limit,
		Offset:     in.Offset,
	}, nil
}

func parseOrderBy(v string) (string, bool, error) {
	parts := strings.Fields(strings.ToLower(v))
	if len(parts) == 0 {
		return repository.OrderByUpdated, true, nil
	}
	if len(parts) > 2 {
		return "", false, ErrInvalidOrderBy
	}

	switch parts[0] {
	case repository.OrderByCreated, repository.OrderByUpdated, repository.OrderByName:
	default:
		return "", false, ErrInvalidOrderBy
	}
	if len(parts) == 1 {
		return parts[0], false, nil
	}
	switch parts[1] {
	case "asc":
		return parts[0], false, nil
	case "desc":
		return parts[0], true, nil
	}
	return "", false, ErrInvalidOrderBy
}

// resourceError passes business errors through and logs and wraps the rest.
func resourceError(logger zerolog.Logger, err error, p domain.Principal, op string) error {
	if isDomainError(err) {
		return err
	}
	logger.Error().Err(err).Str("user_id", p.String()).Str("op", op).Msg("resource operation failed")
	return fmt.Errorf("%w: %v", ErrInternalError, err)
}
