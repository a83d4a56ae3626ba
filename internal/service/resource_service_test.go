package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/ownership"
	"github.com/prn-tf/notebook-server/internal/repository"
)

var (
	alice = domain.UserPrincipal("alice-id")
	bob   = domain.UserPrincipal("bob-id")
)

type resourceFixture struct {
	notebooks *MockResourceRepository[*domain.Notebook]
	sources   *MockResourceRepository[*domain.Source]
	notes     *MockResourceRepository[*domain.Note]
	links     *MockNotebookSourceRepository
	recorder  *MockRecorder
	services  *Services
}

func newResourceFixture(t *testing.T, visibility ownership.Visibility) *resourceFixture {
	t.Helper()
	f := &resourceFixture{
		notebooks: NewMockNotebookRepository(),
		sources:   NewMockSourceRepository(),
		notes:     NewMockNoteRepository(),
		links:     NewMockNotebookSourceRepository(),
		recorder:  &MockRecorder{},
	}
	f.sources.linked = func(notebookID, id string) bool {
		ok, _ := f.links.IsLinked(context.Background(), notebookID, id)
		return ok
	}
	f.services = New(Dependencies{
		Repositories: &repository.Repositories{
			User:           NewMockUserRepository(),
			Notebook:       f.notebooks,
			Source:         f.sources,
			NotebookSource: f.links,
			Note:           f.notes,
		},
		Hasher:     testHasher,
		Visibility: visibility,
		Recorder:   f.recorder,
		Logger:     zerolog.Nop(),
	})
	return f
}

func (f *resourceFixture) notebook(t *testing.T, p domain.Principal, name string) *domain.Notebook {
	t.Helper()
	nb, err := f.services.Notebook.Create(context.Background(), p, CreateNotebookInput{Name: name})
	require.NoError(t, err)
	return nb
}

func notebookNames(items []*domain.Notebook) []string {
	out := make([]string, 0, len(items))
	for _, nb := range items {
		out = append(out, nb.Name)
	}
	return out
}

func TestNotebookService_Isolation(t *testing.T) {
	ctx := context.Background()
	f := newResourceFixture(t, ownership.VisibilityPrivate)
	svc := f.services.Notebook

	a := f.notebook(t, alice, "A")
	b := f.notebook(t, bob, "B")
	legacy := f.notebook(t, domain.NoUser, "legacy")
	assert.Equal(t, "alice-id", *a.OwnerID)
	assert.Nil(t, legacy.OwnerID)

	got, err := svc.List(ctx, alice, ListNotebooksInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, notebookNames(got))

	got, err = svc.List(ctx, bob, ListNotebooksInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, notebookNames(got))

	got, err = svc.List(ctx, domain.NoUser, ListNotebooksInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "legacy"}, notebookNames(got))

	_, err = svc.Get(ctx, alice, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

	err = svc.Delete(ctx, alice, b.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Contains(t, f.notebooks.rows, b.ID)
	assert.Equal(t, []string{"notebook"}, f.recorder.denied)

	require.NoError(t, svc.Delete(ctx, alice, a.ID))
	assert.NotContains(t, f.notebooks.rows, a.ID)
}

func TestNotebookService_SharedVisibility(t *testing.T) {
	ctx := context.Background()
	f := newResourceFixture(t, ownership.VisibilityShared)
	svc := f.services.Notebook

	f.notebook(t, alice, "A")
	f.notebook(t, bob, "B")
	legacy := f.notebook(t, domain.NoUser, "legacy")

	got, err := svc.List(ctx, alice, ListNotebooksInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "legacy"}, notebookNames(got))

	archived := true
	updated, err := svc.Update(ctx, alice, legacy.ID, UpdateNotebookInput{Archived: &archived})
	require.NoError(t, err)
	assert.True(t, updated.Archived)
	assert.Nil(t, updated.OwnerID)
}

func TestNotebookService_Validation(t *testing.T) {
	ctx := context.Background()
	f := newResourceFixture(t, ownership.VisibilityPrivate)
	svc := f.services.Notebook

	_, err := svc.Create(ctx, alice, CreateNotebookInput{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrNotebookNameRequired)

	nb := f.notebook(t, alice, "A")
	empty := ""
	_, err = svc.Update(ctx, alice, nb.ID, UpdateNotebookInput{Name: &empty})
	assert.ErrorIs(t, err, domain.ErrNotebookNameRequired)
	assert.Equal(t, "A", f.notebooks.rows[nb.ID].Name)

	_, err = svc.List(ctx, alice, ListNotebooksInput{ListInput: ListInput{OrderBy: "owner"}})
	assert.ErrorIs(t, err, ErrInvalidOrderBy)

	_, err = svc.List(ctx, alice, ListNotebooksInput{ListInput: ListInput{Limit: -1}})
	assert.ErrorIs(t, err, ErrInvalidPaging)
}

func TestListInput_Options(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name     string
		in       ListInput
		wantBy   string
		wantDesc bool
		wantErr  error
	}{
		{name: "default is newest updated first", in: ListInput{}, wantBy: repository.OrderByUpdated, wantDesc: true},
		{name: "field only is ascending", in: ListInput{OrderBy: "name"}, wantBy: repository.OrderByName},
		{name: "field with direction", in: ListInput{OrderBy: "updated desc"}, wantBy: repository.OrderByUpdated, wantDesc: true},
		{name: "direction is case insensitive", in: ListInput{OrderBy: "Created ASC"}, wantBy: repository.OrderByCreated},
		{name: "explicit flag wins", in: ListInput{OrderBy: "name desc", Descending: &no}, wantBy: repository.OrderByName},
		{name: "explicit flag on default", in: ListInput{Descending: &yes}, wantBy: repository.OrderByUpdated, wantDesc: true},
		{name: "explicit ascending on default", in: ListInput{Descending: &no}, wantBy: repository.OrderByUpdated},
		{name: "unknown field", in: ListInput{OrderBy: "owner"}, wantErr: ErrInvalidOrderBy},
		{name: "unknown direction", in: ListInput{OrderBy: "name sideways"}, wantErr: ErrInvalidOrderBy},
		{name: "too many words", in: ListInput{OrderBy: "name asc please"}, wantErr: ErrInvalidOrderBy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tt.in.options()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBy, opts.OrderBy)
			assert.Equal(t, tt.wantDesc, opts.Descending)
		})
	}
}

func TestNotebookService_StoreErrorIsInternal(t *testing.T) {
	f := newResourceFixture(t, ownership.VisibilityPrivate)
	f.notebooks.getErr = assert.AnError

	_, err := f.services.Notebook.Get(context.Background(), alice, "any")
	assert.ErrorIs(t, err, ErrInternalError)
}

func TestSourceService_ParentNotebook(t *testing.T) {
	ctx := context.Background()
	f := newResourceFixture(t, ownership.VisibilityPrivate)
	svc := f.services.Source

	mine := f.notebook(t, alice, "mine")
	theirs := f.notebook(t, bob, "theirs")

	src, err := svc.Create(ctx, alice, CreateSourceInput{NotebookID: mine.ID, Title: " paper ", URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "paper", src.Title)
	require.NotNil(t, src.OwnerID)
	assert.Equal(t, "alice-id", *src.OwnerID)

	_, err = svc.Create(ctx, alice, CreateSourceInput{NotebookID: theirs.ID, Title: "sneaky"})
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

	_, err = svc.Create(ctx, alice, CreateSourceInput{Title: "orphan"})
	assert.ErrorIs(t, err, domain.ErrNotebookRequired)

	_, err = svc.List(ctx, alice, ListSourcesInput{NotebookID: theirs.ID})
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

	got, err := svc.List(ctx, alice, ListSourcesInput{NotebookID: mine.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, src.ID, got[0].ID)

	// Moving into a foreign notebook is refused before the write.
	_, err = svc.Update(ctx, alice, src.ID, UpdateSourceInput{NotebookID: &theirs.ID})
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)
	assert.Equal(t, mine.ID, f.sources.rows[src.ID].NotebookID)
}

func TestSourceService_ForeignSource(t *testing.T) {
	ctx := context.Background()
	f := newResourceFixture(t, ownership.VisibilityPrivate)
	svc := f.services.Source

	nb := f.notebook(t, bob, "bob's")
	src, err := svc.Create(ctx, bob, CreateSourceInput{NotebookID: nb.ID, Title: "b"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, alice, src.ID)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	title := "mine now"
	_, err = svc.Update(ctx, alice, src.ID, UpdateSourceInput{Title: &title})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	assert.ErrorIs(t, svc.Delete(ctx, alice, src.ID), domain.ErrAccessDenied)
	assert.Equal(t, []string{"source", "source"}, f.recorder.denied)

	require.NoError(t, svc.Delete(ctx, domain.NoUser, src.ID))
}

func TestSourceService_NotebookLinks(t *testing.T) {
	ctx := context.Background()
	f := newResourceFixture(t, ownership.VisibilityPrivate)
	svc := f.services.Source

	home := f.notebook(t, alice, "home")
	other := f.notebook(t, alice, "other")
	theirs := f.notebook(t, bob, "theirs")

	src, err := svc.Create(ctx, alice, CreateSourceInput{NotebookID: home.ID, Title: "paper"})
	require.NoError(t, err)
	bobSrc, err := svc.Create(ctx, bob, CreateSourceInput{NotebookID: theirs.ID, Title: "b"})
	require.NoError(t, err)

	require.NoError(t, svc.AddToNotebook(ctx, alice, other.ID, src.ID))
	require.NoError(t, svc.AddToNotebook(ctx, alice, other.ID, src.ID))
	assert.Len(t, f.links.links, 1)

	got, err := svc.List(ctx, alice, ListSourcesInput{NotebookID: other.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, src.ID, got[0].ID)

	// The home notebook needs no link.
	require.NoError(t, svc.AddToNotebook(ctx, alice, home.ID, src.ID))
	assert.Len(t, f.links.links, 1)

	assert.ErrorIs(t, svc.AddToNotebook(ctx, alice, theirs.ID, src.ID), domain.ErrAccessDenied)
	assert.ErrorIs(t, svc.AddToNotebook(ctx, alice, other.ID, bobSrc.ID), domain.ErrAccessDenied)
	assert.ErrorIs(t, svc.AddToNotebook(ctx, alice, "missing", src.ID), domain.ErrNotebookNotFound)
	assert.ErrorIs(t, svc.AddToNotebook(ctx, alice, other.ID, "missing"), domain.ErrSourceNotFound)
	assert.Equal(t, []string{"notebook", "source"}, f.recorder.denied)

	assert.ErrorIs(t, svc.RemoveFromNotebook(ctx, alice, home.ID, src.ID), domain.ErrSourceHomeNotebook)
	assert.ErrorIs(t, svc.RemoveFromNotebook(ctx, bob, other.ID, src.ID), domain.ErrAccessDenied)

	require.NoError(t, svc.RemoveFromNotebook(ctx, alice, other.ID, src.ID))
	require.NoError(t, svc.RemoveFromNotebook(ctx, alice, other.ID, src.ID))
	assert.Empty(t, f.links.links)

	got, err = svc.List(ctx, alice, ListSourcesInput{NotebookID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	// Legacy mode may link anything.
	require.NoError(t, svc.AddToNotebook(ctx, domain.NoUser, theirs.ID, src.ID))
}

func TestSourceService_LinkStoreErrorIsInternal(t *testing.T) {
	ctx := context.Background()
	f := newResourceFixture(t, ownership.VisibilityPrivate)
	f.links.linkErr = assert.AnError

	home := f.notebook(t, alice, "home")
	other := f.notebook(t, alice, "other")
	src, err := f.services.Source.Create(ctx, alice, CreateSourceInput{NotebookID: home.ID, Title: "paper"})
	require.NoError(t, err)

	err = f.services.Source.AddToNotebook(ctx, alice, other.ID, src.ID)
	assert.ErrorIs(t, err, ErrInternalError)
}

func TestNoteService(t *testing.T) {
	ctx := context.Background()
	f := newResourceFixture(t, ownership.VisibilityPrivate)
	svc := f.services.Note

	nb := f.notebook(t, alice, "A")

	note, err := svc.Create(ctx, alice, CreateNoteInput{NotebookID: nb.ID, Title: "n", Content: "body"})
	require.NoError(t, err)
	assert.Equal(t, domain.NoteTypeHuman, note.NoteType)
	assert.Equal(t, "alice-id", *note.OwnerID)

	_, err = svc.Create(ctx, alice, CreateNoteInput{NotebookID: nb.ID, NoteType: "robot"})
	assert.ErrorIs(t, err, domain.ErrInvalidNoteType)

	_, err = svc.Create(ctx, bob, CreateNoteInput{NotebookID: nb.ID, Title: "intrude"})
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

	ai := domain.NoteTypeAI
	updated, err := svc.Update(ctx, alice, note.ID, UpdateNoteInput{NoteType: &ai})
	require.NoError(t, err)
	assert.Equal(t, domain.NoteTypeAI, updated.NoteType)

	got, err := svc.List(ctx, bob, ListNotesInput{})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.List(ctx, alice, ListNotesInput{NotebookID: nb.ID})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	assert.ErrorIs(t, svc.Delete(ctx, bob, note.ID), domain.ErrAccessDenied)
	require.NoError(t, svc.Delete(ctx, alice, note.ID))
	_, err = svc.Get(ctx, alice, note.ID)
	assert.ErrorIs(t, err, domain.ErrNoteNotFound)
}
