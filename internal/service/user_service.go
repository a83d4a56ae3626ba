package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// UsersExistTTL bounds how long the "any identity registered" answer is cached.
const UsersExistTTL = 30 * time.Second

// UserService handles identity management operations.
type UserService struct {
	userRepo repository.UserRepository
	hasher   auth.PasswordHasher
	cache    repository.Cache
	now      func() time.Time
	logger   zerolog.Logger
}

// NewUserService creates a new UserService. cache may be nil.
func NewUserService(userRepo repository.UserRepository, hasher auth.PasswordHasher, cache repository.Cache, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		cache:    cache,
		now:      time.Now,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// CreateUserInput contains the data needed to create a new user.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	FullName *string
	IsAdmin  bool
}

// CreateUserOutput contains the result of creating a user.
type CreateUserOutput struct {
	User *domain.User
}

// Create creates a new user account.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*CreateUserOutput, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	username := domain.NormalizeUsername(input.Username)
	email := domain.NormalizeEmail(input.Email)

	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to check username existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	exists, err = s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, ErrEmailInUse
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(username, email, passwordHash)
	user.FullName = normalizeFullName(input.FullName)
	user.IsAdmin = input.IsAdmin

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("username", username).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.invalidateUsersExist(ctx)

	s.logger.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Bool("is_admin", user.IsAdmin).
		Msg("user created")

	return &CreateUserOutput{User: user}, nil
}

// Authenticate verifies credentials and returns the user. login is a
// username or an email address. Unknown users, wrong passwords and
// inactive accounts all yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	user, err := s.lookupLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug().Msg("unknown login during authentication")
			return nil, ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("failed to load user during authentication")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Debug().Str("user_id", user.ID).Msg("invalid password during authentication")
		return nil, ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Str("user_id", user.ID).Msg("inactive user attempted authentication")
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) lookupLogin(ctx context.Context, login string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, domain.NormalizeUsername(login))
	if err == nil || !errors.Is(err, domain.ErrUserNotFound) {
		return user, err
	}
	if !strings.Contains(login, "@") {
		return nil, err
	}
	return s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(login))
}

// RecordLogin stamps the user's last login time.
func (s *UserService) RecordLogin(ctx context.Context, user *domain.User) error {
	user.RecordLogin(s.now())
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to record login")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, domain.NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("username", username).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// UpdateProfileInput contains the profile fields a user may change.
// Nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID   string
	Email    *string
	FullName *string
}

// UpdateProfile changes the email and display name of a user.
func (s *UserService) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil && domain.NormalizeEmail(*input.Email) != user.Email {
		email := domain.NormalizeEmail(*input.Email)
		if err := domain.ValidateEmail(email); err != nil {
			return nil, err
		}
		existing, err := s.userRepo.GetByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != user.ID:
			return nil, ErrEmailInUse
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to check email existence")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		user.Email = email
	}

	if input.FullName != nil {
		if err := domain.ValidateFullName(input.FullName); err != nil {
			return nil, err
		}
		user.FullName = normalizeFullName(input.FullName)
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, ErrEmailInUse
		}
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to update profile")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("profile updated")
	return user, nil
}

// ChangePasswordInput contains the data needed to change a password.
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// ChangePassword replaces a user's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	user, err := s.GetByID(ctx, input.UserID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(input.CurrentPassword, user.PasswordHash) {
		s.logger.Warn().Str("user_id", user.ID).Msg("password change with wrong current password")
		return ErrCurrentPasswordInvalid
	}

	if err := domain.ValidatePassword(input.NewPassword); err != nil {
		return err
	}

	newHash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user.PasswordHash = newHash
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("password updated")
	return nil
}

// SetActive sets the active status of a user.
func (s *UserService) SetActive(ctx context.Context, userID string, isActive bool) (*domain.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.IsActive = isActive
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Bool("is_active", isActive).
		Msg("user active status updated")

	return user, nil
}

// SetAdmin sets the admin status of a user.
func (s *UserService) SetAdmin(ctx context.Context, userID string, isAdmin bool) (*domain.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.IsAdmin = isAdmin
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Bool("is_admin", isAdmin).
		Msg("user admin status updated")

	return user, nil
}

// ListUsersInput contains pagination options for listing users.
type ListUsersInput struct {
	Limit  int
	Offset int
}

// ListUsersOutput contains the result of listing users.
type ListUsersOutput struct {
	Users      []*domain.User
	TotalCount int64
	HasMore    bool
}

// List returns all users with pagination.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	if input.Offset < 0 {
		return nil, ErrInvalidPaging
	}

	result, err := s.userRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListUsersOutput{
		Users:      result.Items,
		TotalCount: result.TotalCount,
		HasMore:    result.HasMore,
	}, nil
}

// UsersExist reports whether any identity is registered.
// The answer is cached for UsersExistTTL when a cache is configured.
func (s *UserService) UsersExist(ctx context.Context) (bool, error) {
	key := repository.CacheKey{}.UsersExist()
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			return string(data) == "true", nil
		} else if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Debug().Err(err).Msg("users_exist cache read failed")
		}
	}

	count, err := s.userRepo.Count(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count users")
		return false, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	exists := count > 0

	if s.cache != nil {
		value := []byte("false")
		if exists {
			value = []byte("true")
		}
		if err := s.cache.Set(ctx, key, value, UsersExistTTL); err != nil {
			s.logger.Debug().Err(err).Msg("users_exist cache write failed")
		}
	}
	return exists, nil
}

func (s *UserService) invalidateUsersExist(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, repository.CacheKey{}.UsersExist()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate users_exist cache")
	}
}

// validateCreateInput validates the input for creating a user.
func validateCreateInput(input CreateUserInput) error {
	if err := domain.ValidateUsername(input.Username); err != nil {
		return err
	}
	if err := domain.ValidateEmail(input.Email); err != nil {
		return err
	}
	if err := domain.ValidateFullName(input.FullName); err != nil {
		return err
	}
	return domain.ValidatePassword(input.Password)
}

func normalizeFullName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
