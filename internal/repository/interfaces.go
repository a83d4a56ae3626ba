// Package repository defines data access interfaces for the notebook server.
// These interfaces abstract database operations, allowing for different implementations
// (SQLite, PostgreSQL, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/notebook-server/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	// Returns domain.ErrUserAlreadyExists on a username or email collision.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByUsername retrieves a user by (lowercase) username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail retrieves a user by (lowercase) email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user by ID. Rows the user owned become unowned.
	Delete(ctx context.Context, id string) error

	// List returns all users with pagination, oldest first.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// Count returns the number of users.
	Count(ctx context.Context) (int64, error)

	// GetFirstAdmin returns the oldest admin user.
	// Returns domain.ErrUserNotFound when there is none.
	GetFirstAdmin(ctx context.Context) (*domain.User, error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// ListOptions contains pagination options.
type ListOptions struct {
	// Limit is the maximum number of items to return. Zero means no limit.
	Limit int

	// Offset is the number of items to skip.
	Offset int
}

// ListResult contains one page of items and the total count.
type ListResult[T any] struct {
	Items      []*T
	TotalCount int64
	HasMore    bool
}

// =============================================================================
// Owned Resources
// =============================================================================

// OwnerScope restricts queries on owned resources.
type OwnerScope struct {
	// All disables owner filtering entirely.
	All bool

	// OwnerID matches rows owned by this user.
	OwnerID string

	// IncludeUnowned also matches rows with a NULL owner.
	IncludeUnowned bool
}

// ScopeAll returns a scope that matches every row.
func ScopeAll() OwnerScope {
	return OwnerScope{All: true}
}

// ScopeOwner returns a scope matching one owner's rows, optionally
// together with unowned rows.
func ScopeOwner(ownerID string, includeUnowned bool) OwnerScope {
	return OwnerScope{OwnerID: ownerID, IncludeUnowned: includeUnowned}
}

// Matches reports whether a row with the given owner falls in the scope.
func (s OwnerScope) Matches(owner *string) bool {
	if s.All {
		return true
	}
	if owner == nil {
		return s.IncludeUnowned
	}
	return *owner == s.OwnerID
}

// Sort fields accepted by ResourceListOptions.OrderBy.
const (
	OrderByCreated = "created"
	OrderByUpdated = "updated"
	OrderByName    = "name"
)

// ResourceListOptions contains filters for listing owned resources.
type ResourceListOptions struct {
	// Scope restricts rows by owner.
	Scope OwnerScope

	// NotebookID restricts sources and notes to one notebook.
	NotebookID string

	// Archived filters notebooks by archived flag when non-nil.
	Archived *bool

	// OrderBy is one of the OrderBy constants. Empty means OrderByUpdated.
	OrderBy string

	// Descending reverses the sort order.
	Descending bool

	// Limit is the maximum number of items to return. Zero means no limit.
	Limit int

	// Offset is the number of items to skip.
	Offset int
}

// ResourceRepository is the CRUD surface shared by every owned resource.
type ResourceRepository[R domain.OwnedResource] interface {
	// Create inserts a new row.
	Create(ctx context.Context, r R) error

	// GetByID returns the row or the resource's NotFound error.
	GetByID(ctx context.Context, id string) (R, error)

	// List returns the rows matching opts.
	List(ctx context.Context, opts ResourceListOptions) ([]R, error)

	// Update writes every mutable field of an existing row.
	Update(ctx context.Context, r R) error

	// Delete removes a row by ID.
	Delete(ctx context.Context, id string) error

	// AssignUnowned sets ownerID on every row with a NULL owner and
	// returns the number of rows changed.
	AssignUnowned(ctx context.Context, ownerID string) (int64, error)
}

// NotebookRepository defines the interface for notebook data access.
// Deleting a notebook deletes its sources and notes.
type NotebookRepository interface {
	ResourceRepository[*domain.Notebook]
}

// SourceRepository defines the interface for source data access.
// Listing by NotebookID matches sources created in that notebook and
// sources linked to it.
type SourceRepository interface {
	ResourceRepository[*domain.Source]
}

// NotebookSourceRepository links existing sources into further notebooks.
// A source always belongs to the notebook it was created in; links add
// membership elsewhere. Deleting either side removes its links.
type NotebookSourceRepository interface {
	// Link adds the source to the notebook. Linking twice is a no-op.
	// Returns domain.ErrNotebookNotFound or domain.ErrSourceNotFound when
	// either side is missing.
	Link(ctx context.Context, notebookID, sourceID string, at time.Time) error

	// Unlink removes the link, if present.
	Unlink(ctx context.Context, notebookID, sourceID string) error

	// IsLinked reports whether the source is linked to the notebook.
	IsLinked(ctx context.Context, notebookID, sourceID string) (bool, error)
}

// NoteRepository defines the interface for note data access.
type NoteRepository interface {
	ResourceRepository[*domain.Note]
}

// =============================================================================
// Data Migration Markers
// =============================================================================

// DataMigration records a one-off data migration that has run.
type DataMigration struct {
	Name      string
	AppliedAt time.Time
}

// DataMigrationRepository stores markers for one-off data migrations.
type DataMigrationRepository interface {
	// IsApplied reports whether the named migration has run.
	IsApplied(ctx context.Context, name string) (bool, error)

	// MarkApplied records the named migration. Marking twice is a no-op.
	MarkApplied(ctx context.Context, name string, at time.Time) error

	// Remove deletes the marker, if present.
	Remove(ctx context.Context, name string) error

	// List returns every recorded marker, oldest first.
	List(ctx context.Context) ([]DataMigration, error)
}
