// Package repotest runs the same behavioural checks against every
// repository.Backend implementation.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// Factory returns a freshly migrated, empty backend. It should register
// its own cleanup on t.
type Factory func(t *testing.T) repository.Backend

// Run executes the conformance suite. Each subtest gets its own backend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, repos *repository.Repositories)
	}{
		{"UserCRUD", testUserCRUD},
		{"UserUniqueness", testUserUniqueness},
		{"UserListAndAdmin", testUserListAndAdmin},
		{"UserDeleteReleasesOwnership", testUserDeleteReleasesOwnership},
		{"ScopedListing", testScopedListing},
		{"ListOrderingAndPaging", testListOrderingAndPaging},
		{"AssignUnowned", testAssignUnowned},
		{"NotebookCascade", testNotebookCascade},
		{"NotebookSourceLinks", testNotebookSourceLinks},
		{"MissingParentNotebook", testMissingParentNotebook},
		{"NotFound", testNotFound},
		{"DataMigrationMarkers", testDataMigrationMarkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newBackend(t)
			tt.fn(t, backend.Repositories())
		})
	}
}

func newUser(t *testing.T, repos *repository.Repositories, username string, admin bool) *domain.User {
	t.Helper()
	u := domain.NewUser(username, username+"@example.com", "$2a$10$hash")
	u.IsAdmin = admin
	require.NoError(t, repos.User.Create(context.Background(), u))
	return u
}

func newNotebook(t *testing.T, repos *repository.Repositories, name string, owner *string) *domain.Notebook {
	t.Helper()
	nb := domain.NewNotebook(name, "")
	nb.OwnerID = owner
	require.NoError(t, repos.Notebook.Create(context.Background(), nb))
	return nb
}

func ptr(s string) *string { return &s }

func testUserCRUD(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()

	u := domain.NewUser("Alice", "Alice@Example.com", "$2a$10$hash")
	name := "Alice Liddell"
	u.FullName = &name
	require.NoError(t, repos.User.Create(ctx, u))

	got, err := repos.User.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "$2a$10$hash", got.PasswordHash)
	require.NotNil(t, got.FullName)
	assert.Equal(t, name, *got.FullName)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsAdmin)
	assert.Nil(t, got.LastLogin)
	assert.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Second)

	byName, err := repos.User.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := repos.User.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	got.IsActive = false
	got.RecordLogin(time.Now())
	require.NoError(t, repos.User.Update(ctx, got))

	updated, err := repos.User.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	require.NotNil(t, updated.LastLogin)

	exists, err := repos.User.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repos.User.ExistsByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repos.User.Delete(ctx, u.ID))
	_, err = repos.User.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, repos.User.Delete(ctx, u.ID), domain.ErrUserNotFound)
}

func testUserUniqueness(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()
	newUser(t, repos, "alice", false)

	dupName := domain.NewUser("alice", "other@example.com", "x")
	assert.ErrorIs(t, repos.User.Create(ctx, dupName), domain.ErrUserAlreadyExists)

	dupEmail := domain.NewUser("alice2", "alice@example.com", "x")
	assert.ErrorIs(t, repos.User.Create(ctx, dupEmail), domain.ErrUserAlreadyExists)

	bob := newUser(t, repos, "bob", false)
	bob.Email = "alice@example.com"
	assert.ErrorIs(t, repos.User.Update(ctx, bob), domain.ErrUserAlreadyExists)
}

func testUserListAndAdmin(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()

	_, err := repos.User.GetFirstAdmin(ctx)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	var admin *domain.User
	for i, spec := range []struct {
		username string
		admin    bool
	}{{"alice", false}, {"root", true}, {"zed", true}} {
		u := domain.NewUser(spec.username, spec.username+"@example.com", "x")
		u.IsAdmin = spec.admin
		u.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		u.UpdatedAt = u.CreatedAt
		require.NoError(t, repos.User.Create(ctx, u))
		if spec.username == "root" {
			admin = u
		}
	}

	first, err := repos.User.GetFirstAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, first.ID)

	count, err := repos.User.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	page, err := repos.User.List(ctx, repository.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "alice", page.Items[0].Username)

	rest, err := repos.User.List(ctx, repository.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.False(t, rest.HasMore)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "zed", rest.Items[0].Username)
}

func testUserDeleteReleasesOwnership(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()
	alice := newUser(t, repos, "alice", false)
	nb := newNotebook(t, repos, "Research", ptr(alice.ID))

	note := domain.NewNote(nb.ID, "n", "body", domain.NoteTypeHuman)
	note.OwnerID = ptr(alice.ID)
	require.NoError(t, repos.Note.Create(ctx, note))

	require.NoError(t, repos.User.Delete(ctx, alice.ID))

	gotNB, err := repos.Notebook.GetByID(ctx, nb.ID)
	require.NoError(t, err)
	assert.Nil(t, gotNB.OwnerID)

	gotNote, err := repos.Note.GetByID(ctx, note.ID)
	require.NoError(t, err)
	assert.Nil(t, gotNote.OwnerID)
}

func testScopedListing(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()
	alice := newUser(t, repos, "alice", false)
	bob := newUser(t, repos, "bob", false)

	newNotebook(t, repos, "alice-1", ptr(alice.ID))
	newNotebook(t, repos, "alice-2", ptr(alice.ID))
	newNotebook(t, repos, "bob-1", ptr(bob.ID))
	newNotebook(t, repos, "legacy", nil)

	names := func(opts repository.ResourceListOptions) []string {
		opts.OrderBy = repository.OrderByName
		items, err := repos.Notebook.List(ctx, opts)
		require.NoError(t, err)
		out := make([]string, 0, len(items))
		for _, nb := range items {
			out = append(out, nb.Name)
		}
		return out
	}

	assert.Equal(t, []string{"alice-1", "alice-2"},
		names(repository.ResourceListOptions{Scope: repository.ScopeOwner(alice.ID, false)}))
	assert.Equal(t, []string{"bob-1", "legacy"},
		names(repository.ResourceListOptions{Scope: repository.ScopeOwner(bob.ID, true)}))
	assert.Equal(t, []string{"alice-1", "alice-2", "bob-1", "legacy"},
		names(repository.ResourceListOptions{Scope: repository.ScopeAll()}))

	archived := true
	assert.Empty(t, names(repository.ResourceListOptions{Scope: repository.ScopeAll(), Archived: &archived}))
}

func testListOrderingAndPaging(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()
	nb := newNotebook(t, repos, "nb", nil)

	for _, title := range []string{"b", "c", "a"} {
		s := domain.NewSource(nb.ID, title, "https://example.com/"+title, "")
		require.NoError(t, repos.Source.Create(ctx, s))
	}
	other := newNotebook(t, repos, "other", nil)
	require.NoError(t, repos.Source.Create(ctx, domain.NewSource(other.ID, "z", "", "")))

	items, err := repos.Source.List(ctx, repository.ResourceListOptions{
		Scope:      repository.ScopeAll(),
		NotebookID: nb.ID,
		OrderBy:    repository.OrderByName,
		Descending: true,
		Limit:      2,
		Offset:     1,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Title)
	assert.Equal(t, "a", items[1].Title)
}

func testAssignUnowned(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()
	admin := newUser(t, repos, "admin", true)
	bob := newUser(t, repos, "bob", false)

	legacy := newNotebook(t, repos, "legacy", nil)
	owned := newNotebook(t, repos, "bobs", ptr(bob.ID))
	require.NoError(t, repos.Source.Create(ctx, domain.NewSource(legacy.ID, "s", "", "")))
	require.NoError(t, repos.Note.Create(ctx, domain.NewNote(legacy.ID, "n", "", domain.NoteTypeAI)))

	n, err := repos.Notebook.AssignUnowned(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repos.Source.AssignUnowned(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repos.Note.AssignUnowned(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repos.Notebook.AssignUnowned(ctx, admin.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := repos.Notebook.GetByID(ctx, legacy.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, admin.ID, *got.OwnerID)

	got, err = repos.Notebook.GetByID(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, *got.OwnerID)
}

func testNotebookCascade(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()
	nb := newNotebook(t, repos, "nb", nil)
	src := domain.NewSource(nb.ID, "s", "", "")
	require.NoError(t, repos.Source.Create(ctx, src))
	note := domain.NewNote(nb.ID, "n", "", domain.NoteTypeHuman)
	require.NoError(t, repos.Note.Create(ctx, note))

	require.NoError(t, repos.Notebook.Delete(ctx, nb.ID))

	_, err := repos.Source.GetByID(ctx, src.ID)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
	_, err = repos.Note.GetByID(ctx, note.ID)
	assert.ErrorIs(t, err, domain.ErrNoteNotFound)
}

func testNotebookSourceLinks(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()
	home := newNotebook(t, repos, "home", nil)
	other := newNotebook(t, repos, "other", nil)

	src := domain.NewSource(home.ID, "shared", "", "")
	require.NoError(t, repos.Source.Create(ctx, src))
	require.NoError(t, repos.Source.Create(ctx, domain.NewSource(other.ID, "local", "", "")))
	require.NoError(t, repos.Note.Create(ctx, domain.NewNote(other.ID, "n", "", domain.NoteTypeHuman)))

	now := time.Now().UTC()
	require.NoError(t, repos.NotebookSource.Link(ctx, other.ID, src.ID, now))
	require.NoError(t, repos.NotebookSource.Link(ctx, other.ID, src.ID, now))
	// A link to the home notebook is counted once.
	require.NoError(t, repos.NotebookSource.Link(ctx, home.ID, src.ID, now))

	linked, err := repos.NotebookSource.IsLinked(ctx, other.ID, src.ID)
	require.NoError(t, err)
	assert.True(t, linked)

	titles := func(notebookID string) []string {
		items, err := repos.Source.List(ctx, repository.ResourceListOptions{
			Scope:      repository.ScopeAll(),
			NotebookID: notebookID,
			OrderBy:    repository.OrderByName,
		})
		require.NoError(t, err)
		out := make([]string, 0, len(items))
		for _, s := range items {
			out = append(out, s.Title)
		}
		return out
	}
	assert.Equal(t, []string{"local", "shared"}, titles(other.ID))
	assert.Equal(t, []string{"shared"}, titles(home.ID))

	got, err := repos.Notebook.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.SourceCount)
	assert.Equal(t, int64(1), got.NoteCount)

	all, err := repos.Notebook.List(ctx, repository.ResourceListOptions{Scope: repository.ScopeAll(), OrderBy: repository.OrderByName})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].SourceCount)
	assert.Zero(t, all[0].NoteCount)
	assert.Equal(t, int64(2), all[1].SourceCount)

	missing := uuid.NewString()
	assert.ErrorIs(t, repos.NotebookSource.Link(ctx, missing, src.ID, now), domain.ErrNotebookNotFound)
	assert.ErrorIs(t, repos.NotebookSource.Link(ctx, other.ID, missing, now), domain.ErrSourceNotFound)

	require.NoError(t, repos.NotebookSource.Unlink(ctx, other.ID, src.ID))
	require.NoError(t, repos.NotebookSource.Unlink(ctx, other.ID, src.ID))
	assert.Equal(t, []string{"local"}, titles(other.ID))

	// Deleting the source removes its remaining links.
	require.NoError(t, repos.NotebookSource.Link(ctx, other.ID, src.ID, now))
	require.NoError(t, repos.Source.Delete(ctx, src.ID))
	linked, err = repos.NotebookSource.IsLinked(ctx, other.ID, src.ID)
	require.NoError(t, err)
	assert.False(t, linked)
	got, err = repos.Notebook.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.SourceCount)
}

func testMissingParentNotebook(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()
	missing := uuid.NewString()

	assert.ErrorIs(t, repos.Source.Create(ctx, domain.NewSource(missing, "s", "", "")), domain.ErrNotebookNotFound)
	assert.ErrorIs(t, repos.Note.Create(ctx, domain.NewNote(missing, "n", "", domain.NoteTypeHuman)), domain.ErrNotebookNotFound)

	nb := newNotebook(t, repos, "nb", nil)
	note := domain.NewNote(nb.ID, "n", "", domain.NoteTypeHuman)
	require.NoError(t, repos.Note.Create(ctx, note))
	note.NotebookID = missing
	assert.ErrorIs(t, repos.Note.Update(ctx, note), domain.ErrNotebookNotFound)
}

func testNotFound(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		_, err := repos.Notebook.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotebookNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = repos.Source.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSourceNotFound)

		_, err = repos.Note.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNoteNotFound)

		_, err = repos.User.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)

		assert.ErrorIs(t, repos.Notebook.Delete(ctx, id), domain.ErrNotebookNotFound)
	}

	ghost := domain.NewNotebook("ghost", "")
	assert.ErrorIs(t, repos.Notebook.Update(ctx, ghost), domain.ErrNotebookNotFound)
}

func testDataMigrationMarkers(t *testing.T, repos *repository.Repositories) {
	ctx := context.Background()
	const name = "ownership_backfill"

	applied, err := repos.DataMigration.IsApplied(ctx, name)
	require.NoError(t, err)
	assert.False(t, applied)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repos.DataMigration.MarkApplied(ctx, name, at))
	require.NoError(t, repos.DataMigration.MarkApplied(ctx, name, at.Add(time.Hour)))

	applied, err = repos.DataMigration.IsApplied(ctx, name)
	require.NoError(t, err)
	assert.True(t, applied)

	markers, err := repos.DataMigration.List(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, name, markers[0].Name)
	assert.True(t, at.Equal(markers[0].AppliedAt))

	require.NoError(t, repos.DataMigration.Remove(ctx, name))
	applied, err = repos.DataMigration.IsApplied(ctx, name)
	require.NoError(t, err)
	assert.False(t, applied)
}
