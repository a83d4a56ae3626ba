// Package ownership scopes reads and writes of owned resources to the
// principal resolved for a request.
//
// A NoUser principal (legacy single-user mode) sees and mutates everything.
// A concrete principal sees only its own rows, plus rows without an owner
// when the visibility policy is VisibilityShared.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// Visibility decides whether rows without an owner are visible to
// concrete principals.
type Visibility string

const (
	// VisibilityPrivate hides unowned rows from every concrete principal.
	VisibilityPrivate Visibility = "private"

	// VisibilityShared exposes unowned rows to every concrete principal.
	VisibilityShared Visibility = "shared"
)

// ErrUnknownVisibility is returned by ParseVisibility.
var ErrUnknownVisibility = errors.New("unknown unowned visibility policy")

// ParseVisibility parses a configuration value. Empty means private.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(s))) {
	case "", VisibilityPrivate:
		return VisibilityPrivate, nil
	case VisibilityShared:
		return VisibilityShared, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVisibility, s)
	}
}

// Filter applies the ownership rules to one resource type.
// It holds no per-request state and is safe for concurrent use.
type Filter[R domain.OwnedResource] struct {
	store      repository.ResourceRepository[R]
	visibility Visibility
	notFound   error
	kind       string
	onDenied   func(kind string)
	logger     zerolog.Logger
}

// NewFilter creates a filter over store. notFound is the error returned
// for rows that are missing or invisible to the caller, kind names the
// resource in logs.
func NewFilter[R domain.OwnedResource](
	store repository.ResourceRepository[R],
	visibility Visibility,
	kind string,
	notFound error,
	logger zerolog.Logger,
) *Filter[R] {
	if visibility == "" {
		visibility = VisibilityPrivate
	}
	return &Filter[R]{
		store:      store,
		visibility: visibility,
		notFound:   notFound,
		kind:       kind,
		logger:     logger.With().Str("component", "ownership").Str("resource", kind).Logger(),
	}
}

// OnDenied registers fn to be called with the resource kind whenever a
// write is refused. It returns f for chaining.
func (f *Filter[R]) OnDenied(fn func(kind string)) *Filter[R] {
	f.onDenied = fn
	return f
}

// Visibility returns the configured policy.
func (f *Filter[R]) Visibility() Visibility {
	return f.visibility
}

// Scope returns the repository scope for p.
func (f *Filter[R]) Scope(p domain.Principal) repository.OwnerScope {
	userID, ok := p.UserID()
	if !ok {
		return repository.ScopeAll()
	}
	return repository.ScopeOwner(userID, f.visibility == VisibilityShared)
}

// CanRead reports whether p may see r.
func (f *Filter[R]) CanRead(p domain.Principal, r R) bool {
	return f.Scope(p).Matches(r.Owner())
}

// CheckWrite returns domain.ErrAccessDenied when p may not modify r.
func (f *Filter[R]) CheckWrite(p domain.Principal, r R) error {
	if f.Scope(p).Matches(r.Owner()) {
		return nil
	}
	return domain.NewDomainError(domain.ErrAccessDenied, "resource is owned by another user", f.kind+":"+r.ResourceID())
}

// List returns the rows visible to p. opts.Scope is overwritten.
func (f *Filter[R]) List(ctx context.Context, p domain.Principal, opts repository.ResourceListOptions) ([]R, error) {
	opts.Scope = f.Scope(p)
	return f.store.List(ctx, opts)
}

// Get returns the row when it exists and p may see it. Rows owned by
// someone else are reported as not found.
func (f *Filter[R]) Get(ctx context.Context, p domain.Principal, id string) (R, error) {
	r, err := f.store.GetByID(ctx, id)
	if err != nil {
		var zero R
		return zero, err
	}
	if !f.CanRead(p, r) {
		var zero R
		return zero, f.notFound
	}
	return r, nil
}

// Create stamps p as the owner of r and stores it.
func (f *Filter[R]) Create(ctx context.Context, p domain.Principal, r R) error {
	r.SetOwner(p.OwnerRef())
	return f.store.Create(ctx, r)
}

// Update loads the row, checks that p may modify it, applies mutate and
// writes it back. mutate cannot transfer ownership.
func (f *Filter[R]) Update(ctx context.Context, p domain.Principal, id string, mutate func(R) error) (R, error) {
	var zero R

	r, err := f.GetForWrite(ctx, p, id)
	if err != nil {
		return zero, err
	}

	owner := r.Owner()
	if err := mutate(r); err != nil {
		return zero, err
	}
	r.SetOwner(owner)

	if err := f.store.Update(ctx, r); err != nil {
		return zero, err
	}
	return r, nil
}

// Delete removes the row when p may modify it.
func (f *Filter[R]) Delete(ctx context.Context, p domain.Principal, id string) error {
	if _, err := f.GetForWrite(ctx, p, id); err != nil {
		return err
	}
	return f.store.Delete(ctx, id)
}

// GetForWrite returns the row when p may modify it. A row owned by someone
// else yields domain.ErrAccessDenied and is reported to the OnDenied hook.
func (f *Filter[R]) GetForWrite(ctx context.Context, p domain.Principal, id string) (R, error) {
	r, err := f.store.GetByID(ctx, id)
	if err != nil {
		var zero R
		return zero, err
	}
	if err := f.CheckWrite(p, r); err != nil {
		f.logger.Warn().
			Str("user_id", p.String()).
			Str("resource_id", id).
			Msg("write on foreign resource denied")
		if f.onDenied != nil {
			f.onDenied(f.kind)
		}
		var zero R
		return zero, err
	}
	return r, nil
}
