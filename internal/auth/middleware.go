package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/domain"
)

// IdentityStore looks up the account named by a token's subject.
type IdentityStore interface {
	// GetByID returns domain.ErrUserNotFound when no such user exists.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Observer receives authentication outcomes, typically for metrics.
type Observer interface {
	Admitted(kind CredentialKind)
	Rejected(reason RejectReason)
}

type noopObserver struct{}

func (noopObserver) Admitted(CredentialKind) {}
func (noopObserver) Rejected(RejectReason)   {}

// Config contains configuration for the auth middleware.
type Config struct {
	// LegacyPassword is the shared single-user secret. Empty disables it.
	LegacyPassword string

	// RequireCredentials rejects requests without an Authorization header
	// even when no legacy password is configured.
	RequireCredentials bool

	// SkipPaths are paths that skip authentication.
	SkipPaths []string
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{SkipPaths: DefaultSkipPaths}
}

// AuthRequired reports whether requests without a credential are refused.
func (c Config) AuthRequired() bool {
	return c.LegacyPassword != "" || c.RequireCredentials
}

// Authenticator resolves request credentials into a RequestIdentity.
type Authenticator struct {
	tokens   TokenVerifier
	users    IdentityStore
	config   Config
	observer Observer
	logger   zerolog.Logger
}

// NewAuthenticator creates an Authenticator. A nil observer is allowed.
func NewAuthenticator(tokens TokenVerifier, users IdentityStore, config Config, observer Observer, logger zerolog.Logger) *Authenticator {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Authenticator{
		tokens:   tokens,
		users:    users,
		config:   config,
		observer: observer,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Resolve classifies the request's credential and, for tokens, loads
// the user. It never consults anything but the Authorization header.
func (a *Authenticator) Resolve(r *http.Request) (RequestIdentity, *Rejection) {
	cred, err := ParseCredential(r.Header.Get(AuthorizationHeader), a.config.LegacyPassword)
	if err != nil {
		return RequestIdentity{}, &Rejection{Status: http.StatusUnauthorized, Reason: RejectMalformedHeader, Err: err}
	}

	switch cred.Kind {
	case CredentialAbsent:
		if a.config.AuthRequired() {
			return RequestIdentity{}, &Rejection{Status: http.StatusUnauthorized, Reason: RejectMissingCredential, Err: ErrMissingCredential}
		}
		return RequestIdentity{Principal: domain.NoUser, Credential: CredentialAbsent}, nil

	case CredentialLegacy:
		return RequestIdentity{Principal: domain.NoUser, Credential: CredentialLegacy}, nil
	}

	claims, err := a.tokens.Verify(cred.Token())
	if err != nil {
		return RequestIdentity{}, rejectionForTokenError(err)
	}

	user, err := a.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return RequestIdentity{}, &Rejection{Status: http.StatusUnauthorized, Reason: RejectUnknownUser, UserID: claims.UserID, Err: err}
		}
		return RequestIdentity{}, &Rejection{Status: http.StatusInternalServerError, Reason: RejectStoreError, UserID: claims.UserID, Err: err}
	}
	if !user.CanAuthenticate() {
		return RequestIdentity{}, &Rejection{Status: http.StatusForbidden, Reason: RejectInactiveUser, UserID: user.ID, Err: domain.ErrUserInactive}
	}

	return RequestIdentity{
		Principal:  domain.UserPrincipal(user.ID),
		User:       user,
		Credential: CredentialToken,
	}, nil
}

// Middleware returns the HTTP middleware. Skip paths and OPTIONS
// requests pass through without an identity.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || a.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, rej := a.Resolve(r)
		if rej != nil {
			a.observer.Rejected(rej.Reason)
			event := a.logger.Warn()
			if rej.Status >= http.StatusInternalServerError {
				event = a.logger.Error().Err(rej.Err)
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("reason", string(rej.Reason)).
				Str("user_id", rej.UserID).
				Msg("request rejected")
			writeRejection(w, rej)
			return
		}

		a.observer.Admitted(identity.Credential)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (a *Authenticator) skip(path string) bool {
	for _, p := range a.config.SkipPaths {
		if path == p {
			return true
		}
	}
	return false
}
