package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// Generic Resource Errors
	// ===========================================

	// ErrNotFound indicates the requested entity does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied indicates the caller does not own the resource.
	ErrAccessDenied = errors.New("access denied")

	// ErrValidation is the parent of every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = fmt.Errorf("%w: user already exists", ErrValidation)

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUsernameLength indicates the username length is invalid (3-50 chars).
	ErrUsernameLength = fmt.Errorf("%w: username must be between 3 and 50 characters", ErrValidation)

	// ErrUsernameFormat indicates the username has characters outside [A-Za-z0-9_-].
	ErrUsernameFormat = fmt.Errorf("%w: username can only contain letters, numbers, underscore, and hyphen", ErrValidation)

	// ErrInvalidEmail indicates the email address is malformed.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email format", ErrValidation)

	// ErrFullNameTooLong indicates a display name above FullNameMaxLength.
	ErrFullNameTooLong = fmt.Errorf("%w: full_name must be at most 255 characters", ErrValidation)

	// ErrInvalidPassword indicates the password violates the length policy.
	ErrInvalidPassword = fmt.Errorf("%w: password must be between 8 and 72 characters", ErrValidation)

	// ===========================================
	// Notebook Errors
	// ===========================================

	// ErrNotebookNotFound indicates the requested notebook does not exist.
	ErrNotebookNotFound = fmt.Errorf("notebook %w", ErrNotFound)

	// ErrNotebookNameRequired indicates an empty notebook name.
	ErrNotebookNameRequired = fmt.Errorf("%w: notebook name is required", ErrValidation)

	// ===========================================
	// Source / Note Errors
	// ===========================================

	// ErrSourceNotFound indicates the requested source does not exist.
	ErrSourceNotFound = fmt.Errorf("source %w", ErrNotFound)

	// ErrSourceHomeNotebook indicates an unlink from the notebook the
	// source was created in.
	ErrSourceHomeNotebook = fmt.Errorf("%w: a source cannot be removed from its own notebook; move or delete it instead", ErrValidation)

	// ErrNoteNotFound indicates the requested note does not exist.
	ErrNoteNotFound = fmt.Errorf("note %w", ErrNotFound)

	// ErrNotebookRequired indicates a source or note without a parent notebook.
	ErrNotebookRequired = fmt.Errorf("%w: notebook_id is required", ErrValidation)

	// ErrTitleTooLong indicates a title above MaxTitleLength.
	ErrTitleTooLong = fmt.Errorf("%w: title is too long", ErrValidation)

	// ErrInvalidNoteType indicates a note type other than human or ai.
	ErrInvalidNoteType = fmt.Errorf("%w: note_type must be 'human' or 'ai'", ErrValidation)
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., "notebook:<id>").
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
