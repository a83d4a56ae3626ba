package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{name: "simple", username: "alice"},
		{name: "underscore and hyphen", username: "al_ice-2"},
		{name: "exactly three", username: "abc"},
		{name: "exactly fifty", username: strings.Repeat("a", 50)},
		{name: "too short", username: "ab", wantErr: ErrUsernameLength},
		{name: "too long", username: strings.Repeat("a", 51), wantErr: ErrUsernameLength},
		{name: "space", username: "ali ce", wantErr: ErrUsernameFormat},
		{name: "dot", username: "ali.ce", wantErr: ErrUsernameFormat},
		{name: "at sign", username: "alice@x", wantErr: ErrUsernameFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@x.com"))
	assert.NoError(t, ValidateEmail("admin@localhost"))
	assert.ErrorIs(t, ValidateEmail(""), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("not-an-email"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("Alice <alice@x.com>"), ErrInvalidEmail)
}

func TestValidateFullName(t *testing.T) {
	long := strings.Repeat("é", FullNameMaxLength)
	tooLong := long + "x"

	assert.NoError(t, ValidateFullName(nil))
	assert.NoError(t, ValidateFullName(&long))
	assert.ErrorIs(t, ValidateFullName(&tooLong), ErrFullNameTooLong)
	assert.True(t, IsValidation(ValidateFullName(&tooLong)))

	email := strings.Repeat("a", EmailMaxLength) + "@x.com"
	assert.ErrorIs(t, ValidateEmail(email), ErrInvalidEmail)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("pw123456"))
	assert.ErrorIs(t, ValidatePassword("short"), ErrInvalidPassword)
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("x", 73)), ErrInvalidPassword)
}

func TestNewUser_Normalizes(t *testing.T) {
	u := NewUser("  Alice ", "Alice@X.com", "hash")

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.True(t, u.CanAuthenticate())
	assert.False(t, u.IsAdmin)
	assert.Nil(t, u.LastLogin)
}

func TestPrincipal(t *testing.T) {
	assert.True(t, NoUser.IsNoUser())
	assert.Nil(t, NoUser.OwnerRef())
	_, ok := NoUser.UserID()
	assert.False(t, ok)

	p := UserPrincipal("u-1")
	id, ok := p.UserID()
	assert.True(t, ok)
	assert.Equal(t, "u-1", id)
	assert.Equal(t, "u-1", *p.OwnerRef())
	assert.Equal(t, NoUser, UserPrincipal(""))
}

func TestOwnedBy(t *testing.T) {
	nb := NewNotebook("n", "")
	assert.False(t, OwnedBy(nb, "u-1"))

	nb.SetOwner(UserPrincipal("u-1").OwnerRef())
	assert.True(t, OwnedBy(nb, "u-1"))
	assert.False(t, OwnedBy(nb, "u-2"))
}

func TestNotFoundFamily(t *testing.T) {
	for _, err := range []error{ErrUserNotFound, ErrNotebookNotFound, ErrSourceNotFound, ErrNoteNotFound} {
		assert.True(t, errors.Is(err, ErrNotFound), err.Error())
	}
}

func TestNote_Validate(t *testing.T) {
	n := NewNote("nb-1", "t", "c", "")
	assert.Equal(t, NoteTypeHuman, n.NoteType)
	assert.NoError(t, n.Validate())

	n.NoteType = "robot"
	assert.ErrorIs(t, n.Validate(), ErrInvalidNoteType)

	n = NewNote("", "t", "c", NoteTypeAI)
	assert.ErrorIs(t, n.Validate(), ErrNotebookRequired)
}
