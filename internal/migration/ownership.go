// Package migration runs the one-time move from single-user to
// multiuser data: schema changes, the bootstrap administrator and the
// ownership backfill of legacy rows.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/config"
	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/lock"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// MarkerOwnershipBackfill names the data migration marker recorded once
// legacy rows have been assigned to the administrator.
const MarkerOwnershipBackfill = "ownership_backfill"

// DefaultLockTTL bounds how long a crashed migrator can block others.
const DefaultLockTTL = 5 * time.Minute

// Schema applies and rolls back structural migrations.
// *repository.SchemaMigrator implements it.
type Schema interface {
	Up(ctx context.Context) error
	DownTo(ctx context.Context, version int64) error
	Version(ctx context.Context) (int64, error)
}

// Result describes what a call to Up changed.
type Result struct {
	// Admin is the administrator that owns the backfilled rows.
	Admin *domain.User

	// AdminCreated is true when Up provisioned the bootstrap administrator.
	AdminCreated bool

	// Backfilled is false when the marker was already present.
	Backfilled bool

	// Notebooks, Sources and Notes count the rows stamped with Admin.
	Notebooks int64
	Sources   int64
	Notes     int64
}

// Status reports the migration state without changing anything.
type Status struct {
	SchemaVersion int64
	Backfilled    bool
	BackfilledAt  *time.Time
	Admin         *domain.User
}

// OwnershipMigrator applies and reverts the ownership migration.
// Up and Down run under a lock so concurrent callers cannot provision two
// administrators or stamp rows twice.
type OwnershipMigrator struct {
	schema    Schema
	repos     *repository.Repositories
	hasher    auth.PasswordHasher
	locker    lock.Locker
	cache     repository.Cache
	bootstrap config.BootstrapConfig
	lockTTL   time.Duration
	retry     lock.RetryPolicy
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures an OwnershipMigrator.
type Option func(*OwnershipMigrator)

// WithCache invalidates cached identity state after the administrator is created.
func WithCache(cache repository.Cache) Option {
	return func(m *OwnershipMigrator) { m.cache = cache }
}

// WithRetryPolicy overrides how long Up and Down wait for a busy lock.
func WithRetryPolicy(policy lock.RetryPolicy) Option {
	return func(m *OwnershipMigrator) { m.retry = policy }
}

// WithClock overrides the time source used for markers.
func WithClock(now func() time.Time) Option {
	return func(m *OwnershipMigrator) { m.now = now }
}

// NewOwnershipMigrator creates a new migrator.
func NewOwnershipMigrator(
	schema Schema,
	repos *repository.Repositories,
	hasher auth.PasswordHasher,
	locker lock.Locker,
	bootstrap config.BootstrapConfig,
	logger zerolog.Logger,
	opts ...Option,
) *OwnershipMigrator {
	m := &OwnershipMigrator{
		schema:    schema,
		repos:     repos,
		hasher:    hasher,
		locker:    locker,
		bootstrap: bootstrap,
		lockTTL:   DefaultLockTTL,
		retry:     lock.DefaultRetryPolicy,
		now:       time.Now,
		logger:    logger.With().Str("component", "migration").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies the schema migrations, provisions the bootstrap
// administrator when no administrator exists and, on first application
// only, assigns every unowned row to the administrator.
func (m *OwnershipMigrator) Up(ctx context.Context) (*Result, error) {
	var result *Result
	err := lock.WithLock(ctx, m.locker, lock.Keys.OwnershipMigration(), m.lockTTL, m.retry, func(ctx context.Context) error {
		var err error
		result, err = m.up(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *OwnershipMigrator) up(ctx context.Context) (*Result, error) {
	if err := m.schema.Up(ctx); err != nil {
		return nil, fmt.Errorf("failed to apply schema migrations: %w", err)
	}

	admin, created, err := m.ensureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{Admin: admin, AdminCreated: created}

	applied, err := m.repos.DataMigration.IsApplied(ctx, MarkerOwnershipBackfill)
	if err != nil {
		return nil, err
	}
	if applied {
		m.logger.Info().
			Str("admin", admin.Username).
			Msg("ownership backfill already applied")
		return result, nil
	}

	if result.Notebooks, err = m.repos.Notebook.AssignUnowned(ctx, admin.ID); err != nil {
		return nil, err
	}
	if result.Sources, err = m.repos.Source.AssignUnowned(ctx, admin.ID); err != nil {
		return nil, err
	}
	if result.Notes, err = m.repos.Note.AssignUnowned(ctx, admin.ID); err != nil {
		return nil, err
	}
	if err := m.repos.DataMigration.MarkApplied(ctx, MarkerOwnershipBackfill, m.now().UTC()); err != nil {
		return nil, err
	}
	result.Backfilled = true

	m.logger.Info().
		Str("admin", admin.Username).
		Str("admin_id", admin.ID).
		Int64("notebooks", result.Notebooks).
		Int64("sources", result.Sources).
		Int64("notes", result.Notes).
		Msg("ownership backfill applied")

	return result, nil
}

// ensureAdmin returns the oldest administrator, creating the bootstrap
// administrator when there is none.
func (m *OwnershipMigrator) ensureAdmin(ctx context.Context) (*domain.User, bool, error) {
	admin, err := m.repos.User.GetFirstAdmin(ctx)
	if err == nil {
		return admin, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, fmt.Errorf("failed to look up administrator: %w", err)
	}

	if err := domain.ValidateUsername(m.bootstrap.Username); err != nil {
		return nil, false, fmt.Errorf("invalid bootstrap username: %w", err)
	}
	if err := domain.ValidatePassword(m.bootstrap.Password); err != nil {
		return nil, false, fmt.Errorf("invalid bootstrap password: %w", err)
	}

	hash, err := m.hasher.Hash(m.bootstrap.Password)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	admin = domain.NewUser(m.bootstrap.Username, m.bootstrap.Email, hash)
	admin.IsAdmin = true
	if err := m.repos.User.Create(ctx, admin); err != nil {
		return nil, false, fmt.Errorf("failed to create bootstrap administrator: %w", err)
	}

	if m.cache != nil {
		if err := m.cache.Delete(ctx, repository.CacheKey{}.UsersExist()); err != nil {
			m.logger.Warn().Err(err).Msg("failed to invalidate identity cache")
		}
	}

	m.logger.Warn().
		Str("username", admin.Username).
		Msg("bootstrap administrator created, change its password")

	return admin, true, nil
}

// Down reverts Up: it forgets the backfill marker, removes the bootstrap
// administrator and rolls the schema back to its pre-ownership version,
// which drops the owner columns.
func (m *OwnershipMigrator) Down(ctx context.Context) error {
	return lock.WithLock(ctx, m.locker, lock.Keys.OwnershipMigration(), m.lockTTL, m.retry, m.down)
}

func (m *OwnershipMigrator) down(ctx context.Context) error {
	version, err := m.schema.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version >= repository.SchemaVersionDataMigrations {
		if err := m.repos.DataMigration.Remove(ctx, MarkerOwnershipBackfill); err != nil {
			return err
		}
	}

	if version >= repository.SchemaVersionOwnership {
		if err := m.removeBootstrapAdmin(ctx); err != nil {
			return err
		}
	}

	if err := m.schema.DownTo(ctx, repository.SchemaVersionInit); err != nil {
		return fmt.Errorf("failed to roll back schema: %w", err)
	}

	m.logger.Info().Int64("from_version", version).Msg("ownership migration reverted")
	return nil
}

func (m *OwnershipMigrator) removeBootstrapAdmin(ctx context.Context) error {
	admin, err := m.repos.User.GetByUsername(ctx, domain.NormalizeUsername(m.bootstrap.Username))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up bootstrap administrator: %w", err)
	}
	if !admin.IsAdmin {
		return nil
	}
	if err := m.repos.User.Delete(ctx, admin.ID); err != nil {
		return fmt.Errorf("failed to delete bootstrap administrator: %w", err)
	}
	return nil
}

// Status reports the schema version, the marker and the current administrator.
func (m *OwnershipMigrator) Status(ctx context.Context) (*Status, error) {
	version, err := m.schema.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	st := &Status{SchemaVersion: version}

	if version >= repository.SchemaVersionOwnership {
		admin, err := m.repos.User.GetFirstAdmin(ctx)
		switch {
		case err == nil:
			st.Admin = admin
		case !errors.Is(err, domain.ErrUserNotFound):
			return nil, err
		}
	}

	if version >= repository.SchemaVersionDataMigrations {
		markers, err := m.repos.DataMigration.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, mk := range markers {
			if mk.Name == MarkerOwnershipBackfill {
				at := mk.AppliedAt
				st.Backfilled = true
				st.BackfilledAt = &at
			}
		}
	}
	return st, nil
}
