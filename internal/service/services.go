package service

import (
	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/ownership"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// Recorder receives every outcome the services report.
type Recorder interface {
	AuthRecorder
	AccessRecorder
}

// Dependencies contains everything needed to build the services.
type Dependencies struct {
	Repositories *repository.Repositories
	Hasher       auth.PasswordHasher
	Tokens       TokenIssuer
	Auth         auth.Config
	Visibility   ownership.Visibility

	// Cache is optional.
	Cache repository.Cache

	// Recorder is optional.
	Recorder Recorder

	Logger zerolog.Logger
}

// Services holds all service instances.
type Services struct {
	User     *UserService
	Auth     *AuthService
	Notebook *NotebookService
	Source   *SourceService
	Note     *NoteService
}

// New wires the services over one set of repositories. Every resource
// service shares the same visibility policy.
func New(deps Dependencies) *Services {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	repos := deps.Repositories

	notebooks := ownership.NewFilter[*domain.Notebook](repos.Notebook, deps.Visibility, "notebook", domain.ErrNotebookNotFound, deps.Logger).
		OnDenied(recorder.RecordAccessDenied)
	sources := ownership.NewFilter[*domain.Source](repos.Source, deps.Visibility, "source", domain.ErrSourceNotFound, deps.Logger).
		OnDenied(recorder.RecordAccessDenied)
	notes := ownership.NewFilter[*domain.Note](repos.Note, deps.Visibility, "note", domain.ErrNoteNotFound, deps.Logger).
		OnDenied(recorder.RecordAccessDenied)

	users := NewUserService(repos.User, deps.Hasher, deps.Cache, deps.Logger)
	return &Services{
		User:     users,
		Auth:     NewAuthService(users, deps.Tokens, deps.Auth, recorder, deps.Logger),
		Notebook: NewNotebookService(notebooks, deps.Logger),
		Source:   NewSourceService(sources, notebooks, repos.NotebookSource, deps.Logger),
		Note:     NewNoteService(notes, notebooks, deps.Logger),
	}
}
