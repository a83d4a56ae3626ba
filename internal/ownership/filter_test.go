package ownership

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// MockNotebookStore is an in-memory repository.NotebookRepository.
type MockNotebookStore struct {
	rows map[string]*domain.Notebook
}

func NewMockNotebookStore() *MockNotebookStore {
	return &MockNotebookStore{rows: make(map[string]*domain.Notebook)}
}

func (m *MockNotebookStore) Create(ctx context.Context, nb *domain.Notebook) error {
	clone := *nb
	m.rows[nb.ID] = &clone
	return nil
}

func (m *MockNotebookStore) GetByID(ctx context.Context, id string) (*domain.Notebook, error) {
	nb, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotebookNotFound
	}
	clone := *nb
	return &clone, nil
}

func (m *MockNotebookStore) List(ctx context.Context, opts repository.ResourceListOptions) ([]*domain.Notebook, error) {
	var out []*domain.Notebook
	for _, nb := range m.rows {
		if opts.Scope.Matches(nb.OwnerID) {
			clone := *nb
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockNotebookStore) Update(ctx context.Context, nb *domain.Notebook) error {
	if _, ok := m.rows[nb.ID]; !ok {
		return domain.ErrNotebookNotFound
	}
	clone := *nb
	m.rows[nb.ID] = &clone
	return nil
}

func (m *MockNotebookStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.rows[id]; !ok {
		return domain.ErrNotebookNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MockNotebookStore) AssignUnowned(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	for _, nb := range m.rows {
		if nb.OwnerID == nil {
			id := ownerID
			nb.OwnerID = &id
			n++
		}
	}
	return n, nil
}

var (
	alice = domain.UserPrincipal("alice-id")
	bob   = domain.UserPrincipal("bob-id")
)

type fixture struct {
	store  *MockNotebookStore
	filter *Filter[*domain.Notebook]
	alices *domain.Notebook
	bobs   *domain.Notebook
	legacy *domain.Notebook
}

func newFixture(t *testing.T, visibility Visibility) *fixture {
	t.Helper()
	ctx := context.Background()

	store := NewMockNotebookStore()
	f := &fixture{
		store:  store,
		filter: NewFilter[*domain.Notebook](store, visibility, "notebook", domain.ErrNotebookNotFound, zerolog.Nop()),
		alices: domain.NewNotebook("alice", ""),
		bobs:   domain.NewNotebook("bob", ""),
		legacy: domain.NewNotebook("legacy", ""),
	}
	require.NoError(t, f.filter.Create(ctx, alice, f.alices))
	require.NoError(t, f.filter.Create(ctx, bob, f.bobs))
	require.NoError(t, f.filter.Create(ctx, domain.NoUser, f.legacy))
	return f
}

func names(items []*domain.Notebook) []string {
	out := make([]string, 0, len(items))
	for _, nb := range items {
		out = append(out, nb.Name)
	}
	return out
}

func TestParseVisibility(t *testing.T) {
	tests := []struct {
		in      string
		want    Visibility
		wantErr bool
	}{
		{"", VisibilityPrivate, false},
		{"private", VisibilityPrivate, false},
		{" Shared ", VisibilityShared, false},
		{"public", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVisibility(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownVisibility)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateStampsOwner(t *testing.T) {
	f := newFixture(t, VisibilityPrivate)

	require.NotNil(t, f.alices.OwnerID)
	assert.Equal(t, "alice-id", *f.alices.OwnerID)
	assert.Nil(t, f.legacy.OwnerID)

	// A caller-supplied owner is replaced.
	forged := domain.NewNotebook("forged", "")
	other := "bob-id"
	forged.OwnerID = &other
	require.NoError(t, f.filter.Create(context.Background(), alice, forged))
	assert.Equal(t, "alice-id", *f.store.rows[forged.ID].OwnerID)
}

func TestListIsolation(t *testing.T) {
	ctx := context.Background()

	t.Run("private", func(t *testing.T) {
		f := newFixture(t, VisibilityPrivate)

		got, err := f.filter.List(ctx, alice, repository.ResourceListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, names(got))

		got, err = f.filter.List(ctx, bob, repository.ResourceListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, names(got))

		got, err = f.filter.List(ctx, domain.NoUser, repository.ResourceListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "legacy"}, names(got))
	})

	t.Run("shared", func(t *testing.T) {
		f := newFixture(t, VisibilityShared)

		got, err := f.filter.List(ctx, alice, repository.ResourceListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "legacy"}, names(got))
	})

	t.Run("caller scope is ignored", func(t *testing.T) {
		f := newFixture(t, VisibilityPrivate)

		got, err := f.filter.List(ctx, alice, repository.ResourceListOptions{Scope: repository.ScopeAll()})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, names(got))
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, VisibilityPrivate)

	got, err := f.filter.Get(ctx, alice, f.alices.ID)
	require.NoError(t, err)
	assert.Equal(t, f.alices.ID, got.ID)

	_, err = f.filter.Get(ctx, alice, f.bobs.ID)
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

	_, err = f.filter.Get(ctx, alice, f.legacy.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.filter.Get(ctx, alice, "missing")
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

	got, err = f.filter.Get(ctx, domain.NoUser, f.bobs.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Name)
}

func TestDeleteForeignResource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, VisibilityPrivate)
	var denied []string
	f.filter.OnDenied(func(kind string) { denied = append(denied, kind) })

	err := f.filter.Delete(ctx, alice, f.bobs.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Contains(t, f.store.rows, f.bobs.ID)

	err = f.filter.Delete(ctx, alice, f.legacy.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Equal(t, []string{"notebook", "notebook"}, denied)

	assert.ErrorIs(t, f.filter.Delete(ctx, alice, "missing"), domain.ErrNotebookNotFound)

	require.NoError(t, f.filter.Delete(ctx, alice, f.alices.ID))
	assert.NotContains(t, f.store.rows, f.alices.ID)

	require.NoError(t, f.filter.Delete(ctx, domain.NoUser, f.bobs.ID))
	assert.NotContains(t, f.store.rows, f.bobs.ID)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("owner", func(t *testing.T) {
		f := newFixture(t, VisibilityPrivate)

		got, err := f.filter.Update(ctx, alice, f.alices.ID, func(nb *domain.Notebook) error {
			nb.Name = "renamed"
			nb.OwnerID = nil
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		require.NotNil(t, f.store.rows[f.alices.ID].OwnerID)
		assert.Equal(t, "alice-id", *f.store.rows[f.alices.ID].OwnerID)
	})

	t.Run("foreign", func(t *testing.T) {
		f := newFixture(t, VisibilityPrivate)

		called := false
		_, err := f.filter.Update(ctx, alice, f.bobs.ID, func(nb *domain.Notebook) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
		assert.False(t, called)
		assert.Equal(t, "bob", f.store.rows[f.bobs.ID].Name)
	})

	t.Run("shared legacy row", func(t *testing.T) {
		f := newFixture(t, VisibilityShared)

		_, err := f.filter.Update(ctx, alice, f.legacy.ID, func(nb *domain.Notebook) error {
			nb.Description = "touched"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "touched", f.store.rows[f.legacy.ID].Description)
		assert.Nil(t, f.store.rows[f.legacy.ID].OwnerID)
	})

	t.Run("mutate error", func(t *testing.T) {
		f := newFixture(t, VisibilityPrivate)
		boom := errors.New("boom")

		_, err := f.filter.Update(ctx, alice, f.alices.ID, func(nb *domain.Notebook) error {
			nb.Name = "never stored"
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "alice", f.store.rows[f.alices.ID].Name)
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t, VisibilityPrivate)

		_, err := f.filter.Update(ctx, alice, "missing", func(*domain.Notebook) error { return nil })
		assert.ErrorIs(t, err, domain.ErrNotebookNotFound)
	})
}

func TestScope(t *testing.T) {
	private := NewFilter[*domain.Notebook](NewMockNotebookStore(), "", "notebook", domain.ErrNotebookNotFound, zerolog.Nop())
	assert.Equal(t, VisibilityPrivate, private.Visibility())
	assert.Equal(t, repository.ScopeAll(), private.Scope(domain.NoUser))
	assert.Equal(t, repository.ScopeOwner("alice-id", false), private.Scope(alice))

	shared := NewFilter[*domain.Notebook](NewMockNotebookStore(), VisibilityShared, "notebook", domain.ErrNotebookNotFound, zerolog.Nop())
	assert.Equal(t, repository.ScopeOwner("alice-id", true), shared.Scope(alice))
}
