// Package domain contains the core business entities of the notebook server.
// These are pure Go structs with no infrastructure dependencies, representing
// identities, the resources they own and the rules both must follow.
package domain

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Username and password limits.
const (
	UsernameMinLength = 3
	UsernameMaxLength = 50
	PasswordMinLength = 8

	// PasswordMaxLength is the bcrypt input limit in bytes.
	PasswordMaxLength = 72

	// EmailMaxLength and FullNameMaxLength are in characters and match
	// the column widths.
	EmailMaxLength    = 255
	FullNameMaxLength = 255
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// User represents a registered identity.
// Users own notebooks, sources and notes and authenticate with a password.
type User struct {
	// ID is the unique identifier for the user (UUID).
	ID string `json:"id"`

	// Username is the unique, lowercase login name.
	// Constraints: 3-50 characters of letters, digits, underscore and hyphen.
	Username string `json:"username"`

	// Email is the unique, lowercase email address for the user.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// FullName is the optional display name.
	FullName *string `json:"full_name"`

	// IsActive indicates whether the user account is active.
	// Inactive users cannot authenticate or perform any operations.
	IsActive bool `json:"is_active"`

	// IsAdmin indicates whether the user has administrative privileges.
	IsAdmin bool `json:"is_admin"`

	// LastLogin is the time of the last successful login, if any.
	LastLogin *time.Time `json:"last_login"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated"`
}

// NewUser creates a new active, non-admin User with a fresh ID.
// Username and email are normalized to lowercase.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Username:     NormalizeUsername(username),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		IsActive:     true,
		IsAdmin:      false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// RecordLogin stamps the last login time.
func (u *User) RecordLogin(at time.Time) {
	at = at.UTC()
	u.LastLogin = &at
	u.UpdatedAt = at
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername checks length and character set of a username.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) < UsernameMinLength || len(username) > UsernameMaxLength {
		return ErrUsernameLength
	}
	if !usernameRegex.MatchString(username) {
		return ErrUsernameFormat
	}
	return nil
}

// ValidateEmail checks that the value is a bare email address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || utf8.RuneCountInString(email) > EmailMaxLength {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateFullName checks the display name length. Nil is valid.
func ValidateFullName(name *string) error {
	if name != nil && utf8.RuneCountInString(strings.TrimSpace(*name)) > FullNameMaxLength {
		return ErrFullNameTooLong
	}
	return nil
}

// ValidatePassword checks the password length policy.
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength || len(password) > PasswordMaxLength {
		return ErrInvalidPassword
	}
	return nil
}
