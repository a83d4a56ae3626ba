// Package service provides business logic services for the notebook server.
package service

import (
	"errors"
	"fmt"

	"github.com/prn-tf/notebook-server/internal/domain"
)

// Common service errors.
var (
	// User errors
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrInvalidCredentials     = fmt.Errorf("%w: invalid username or password", domain.ErrInvalidCredentials)
	ErrCurrentPasswordInvalid = fmt.Errorf("%w: current password is incorrect", domain.ErrInvalidCredentials)
	ErrEmailInUse             = fmt.Errorf("%w: email already in use", domain.ErrUserAlreadyExists)
	ErrUsernameTaken          = fmt.Errorf("%w: username already taken", domain.ErrUserAlreadyExists)

	// Listing errors
	ErrInvalidOrderBy = fmt.Errorf("%w: order_by must be one of created, updated, name, optionally followed by asc or desc", domain.ErrValidation)
	ErrInvalidPaging  = fmt.Errorf("%w: limit and offset must not be negative", domain.ErrValidation)

	// General errors
	ErrInternalError = errors.New("internal server error")
)

// isDomainError reports whether err is a business rule failure that
// should reach the caller unchanged.
func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrAccessDenied) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrInvalidCredentials)
}
