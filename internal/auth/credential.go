package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/prn-tf/notebook-server/internal/domain"
)

// CredentialKind identifies the form of credential presented by a request.
type CredentialKind int

const (
	// CredentialAbsent means no Authorization header was sent.
	CredentialAbsent CredentialKind = iota

	// CredentialLegacy means the bearer value matched the shared legacy password.
	CredentialLegacy

	// CredentialToken means the bearer value is a signed token.
	CredentialToken
)

// String returns the kind as a label suitable for logs and metrics.
func (k CredentialKind) String() string {
	switch k {
	case CredentialAbsent:
		return "absent"
	case CredentialLegacy:
		return "legacy"
	case CredentialToken:
		return "token"
	default:
		return "unknown"
	}
}

// Credential is the parsed Authorization header.
type Credential struct {
	Kind  CredentialKind
	token string
}

// Token returns the raw bearer token for CredentialToken, otherwise "".
func (c Credential) Token() string {
	if c.Kind != CredentialToken {
		return ""
	}
	return c.token
}

// ParseCredential classifies an Authorization header value.
// The legacy secret is compared first, in constant time; anything else
// after "Bearer " is treated as a token.
func ParseCredential(header, legacySecret string) (Credential, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Credential{Kind: CredentialAbsent}, nil
	}

	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, BearerScheme) {
		return Credential{}, ErrMalformedAuthorization
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Credential{}, ErrMalformedAuthorization
	}

	if legacySecret != "" && subtle.ConstantTimeCompare([]byte(value), []byte(legacySecret)) == 1 {
		return Credential{Kind: CredentialLegacy}, nil
	}
	return Credential{Kind: CredentialToken, token: value}, nil
}

// RequestIdentity is what the middleware attaches to an admitted request.
type RequestIdentity struct {
	// Principal is NoUser or the authenticated user.
	Principal domain.Principal

	// User is the resolved account. Nil when Principal is NoUser.
	User *domain.User

	// Credential is the kind of credential that admitted the request.
	Credential CredentialKind
}

type identityContextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id RequestIdentity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFrom returns the identity attached by the middleware.
func IdentityFrom(ctx context.Context) (RequestIdentity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(RequestIdentity)
	return id, ok
}

// PrincipalFrom returns the request principal, or NoUser when the
// middleware did not run for this request.
func PrincipalFrom(ctx context.Context) domain.Principal {
	if id, ok := IdentityFrom(ctx); ok {
		return id.Principal
	}
	return domain.NoUser
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (*domain.User, bool) {
	id, ok := IdentityFrom(ctx)
	if !ok || id.User == nil {
		return nil, false
	}
	return id.User, true
}
