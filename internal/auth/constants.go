// Package auth establishes who is making a request: password hashing,
// signed bearer tokens and the HTTP middleware that resolves a request's
// credential into a domain.Principal.
package auth

import "time"

const (
	// AuthorizationHeader is the HTTP header carrying the credential.
	AuthorizationHeader = "Authorization"

	// BearerScheme is the only accepted authorization scheme.
	BearerScheme = "Bearer"

	// WWWAuthenticateHeader is sent with every 401 response.
	WWWAuthenticateHeader = "WWW-Authenticate"

	// SigningAlgorithm is the JWT algorithm used for issued tokens.
	SigningAlgorithm = "HS256"

	// DefaultTokenTTL is the token lifetime when none is configured (7 days).
	DefaultTokenTTL = 168 * time.Hour

	// InsecureDefaultSecret is the documented fallback signing secret used
	// outside production when none is configured. Anyone who knows it can
	// mint tokens.
	InsecureDefaultSecret = "change-me-in-production-please-use-a-secure-random-key"
)

// DefaultSkipPaths are reachable without any credential.
var DefaultSkipPaths = []string{
	"/health",
	"/metrics",
	"/auth/status",
	"/auth/register",
	"/auth/login",
}
