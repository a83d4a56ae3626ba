package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/domain"
)

// TokenConfig configures a TokenService.
type TokenConfig struct {
	// Secret is the HMAC signing key.
	Secret []byte

	// TTL is the token lifetime. Zero means DefaultTokenTTL.
	TTL time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Token is a freshly issued bearer token.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims are the verified contents of a token.
type Claims struct {
	UserID    string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the wire form of a token payload.
type tokenClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*Claims, error)
}

// TokenService issues and verifies HS256-signed tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token signing secret must not be empty")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", cfg.TTL)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenService{secret: cfg.Secret, ttl: cfg.TTL, now: cfg.Now}, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for the user.
func (s *TokenService) Issue(user *domain.User) (*Token, error) {
	if user == nil || user.ID == "" {
		return nil, errors.New("cannot issue token without a user id")
	}

	// Numeric dates carry second precision on the wire.
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: user.Username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{Value: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Verify checks the signature, algorithm and expiry of a token and
// returns its claims. Failures are *TokenError.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{SigningAlgorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}

	if claims.Subject == "" {
		return nil, &TokenError{Kind: TokenMalformed, Err: errors.New("token has no subject")}
	}

	out := &Claims{
		UserID:    claims.Subject,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// mapJWTError translates jwt library errors to TokenError kinds.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Kind: TokenBadSignature, Err: err}
	default:
		return &TokenError{Kind: TokenMalformed, Err: err}
	}
}

// ResolveSigningSecret picks the signing secret for the deployment.
// Production refuses to start without one; elsewhere the insecure
// default is used and a warning is logged.
func ResolveSigningSecret(secret string, production bool, logger zerolog.Logger) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}
	if production {
		return nil, ErrSigningSecretRequired
	}

	logger.Warn().
		Str("component", "auth").
		Msg("no token signing secret configured, using the insecure built-in default; set auth.jwt_secret before exposing this server")
	return []byte(InsecureDefaultSecret), nil
}

// Ensure TokenService implements TokenVerifier.
var _ TokenVerifier = (*TokenService)(nil)
