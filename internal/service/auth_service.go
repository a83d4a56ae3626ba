package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/domain"
)

// Deployment modes reported by Status.
const (
	ModeSingleUser = "single-user"
	ModeMultiuser  = "multiuser"
)

// TokenIssuer issues bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(user *domain.User) (*auth.Token, error)
}

// AuthRecorder receives registration and login outcomes.
type AuthRecorder interface {
	RecordLogin(success bool)
	RecordRegistration()
}

type noopRecorder struct{}

func (noopRecorder) RecordLogin(bool)          {}
func (noopRecorder) RecordRegistration()       {}
func (noopRecorder) RecordAccessDenied(string) {}

// AuthService handles registration, login and session-facing identity
// operations.
type AuthService struct {
	users    *UserService
	tokens   TokenIssuer
	config   auth.Config
	recorder AuthRecorder
	logger   zerolog.Logger
}

// NewAuthService creates a new AuthService. recorder may be nil.
func NewAuthService(users *UserService, tokens TokenIssuer, config auth.Config, recorder AuthRecorder, logger zerolog.Logger) *AuthService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		config:   config,
		recorder: recorder,
		logger:   logger.With().Str("service", "auth").Logger(),
	}
}

// RegisterInput contains the data needed to register an identity.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName *string
}

// LoginInput contains login credentials. Login is a username or email.
type LoginInput struct {
	Login    string
	Password string
}

// AuthOutput is the result of a successful registration or login.
type AuthOutput struct {
	Token *auth.Token
	User  *domain.User
}

// Register creates a regular (non-admin) identity and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthOutput, error) {
	created, err := s.users.Create(ctx, CreateUserInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		FullName: input.FullName,
	})
	if err != nil {
		return nil, err
	}
	user := created.User
	s.recorder.RecordRegistration()

	if err := s.users.RecordLogin(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthOutput, error) {
	user, err := s.users.Authenticate(ctx, input.Login, input.Password)
	if err != nil {
		s.recorder.RecordLogin(false)
		return nil, err
	}
	s.recorder.RecordLogin(true)

	if err := s.users.RecordLogin(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*AuthOutput, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue token")
		return nil, ErrInternalError
	}
	return &AuthOutput{Token: token, User: user}, nil
}

// Me returns the account of p.
func (s *AuthService) Me(ctx context.Context, p domain.Principal) (*domain.User, error) {
	userID, ok := p.UserID()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return s.users.GetByID(ctx, userID)
}

// UpdateMeInput contains the profile changes requested by the caller.
type UpdateMeInput struct {
	Email    *string
	FullName *string
}

// UpdateMe changes the profile of p.
func (s *AuthService) UpdateMe(ctx context.Context, p domain.Principal, input UpdateMeInput) (*domain.User, error) {
	userID, ok := p.UserID()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return s.users.UpdateProfile(ctx, UpdateProfileInput{
		UserID:   userID,
		Email:    input.Email,
		FullName: input.FullName,
	})
}

// ChangeMyPassword replaces the password of p.
func (s *AuthService) ChangeMyPassword(ctx context.Context, p domain.Principal, current, next string) error {
	userID, ok := p.UserID()
	if !ok {
		return ErrNotAuthenticated
	}
	return s.users.ChangePassword(ctx, ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: current,
		NewPassword:     next,
	})
}

// StatusOutput describes how the deployment authenticates.
type StatusOutput struct {
	Mode                  string
	AuthRequired          bool
	MultiuserEnabled      bool
	LegacyPasswordEnabled bool
}

// Message returns a short human-readable summary.
func (o *StatusOutput) Message() string {
	if o.AuthRequired {
		return "Authentication is required"
	}
	if o.MultiuserEnabled {
		return "Authentication is optional"
	}
	return "Authentication is disabled"
}

// Status reports whether identities exist and whether clients must
// authenticate.
func (s *AuthService) Status(ctx context.Context) (*StatusOutput, error) {
	multiuser, err := s.users.UsersExist(ctx)
	if err != nil {
		return nil, err
	}

	out := &StatusOutput{
		Mode:                  ModeSingleUser,
		MultiuserEnabled:      multiuser,
		LegacyPasswordEnabled: s.config.LegacyPassword != "",
	}
	if multiuser {
		out.Mode = ModeMultiuser
	}
	out.AuthRequired = s.config.AuthRequired()
	return out, nil
}
