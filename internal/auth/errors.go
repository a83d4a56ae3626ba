package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Authentication errors.
var (
	// ErrInvalidToken is the parent of every token verification failure.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingCredential indicates the request carried no Authorization header.
	ErrMissingCredential = errors.New("missing credential")

	// ErrMalformedAuthorization indicates the Authorization header is not "Bearer <value>".
	ErrMalformedAuthorization = errors.New("malformed authorization header")

	// ErrSigningSecretRequired indicates a production deployment without a signing secret.
	ErrSigningSecretRequired = errors.New("token signing secret is required in production")
)

// TokenErrorKind classifies token verification failures.
type TokenErrorKind string

const (
	// TokenExpired means the token's exp claim is in the past.
	TokenExpired TokenErrorKind = "expired"

	// TokenMalformed means the token could not be parsed or lacks required claims.
	TokenMalformed TokenErrorKind = "malformed"

	// TokenBadSignature means the signature or algorithm does not match.
	TokenBadSignature TokenErrorKind = "bad_signature"
)

// TokenError is returned by TokenService.Verify.
type TokenError struct {
	// Kind is the failure class.
	Kind TokenErrorKind

	// Err is the underlying library error.
	Err error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return "invalid token: " + string(e.Kind)
	}
	return "invalid token: " + string(e.Kind) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TokenError) Unwrap() error {
	return e.Err
}

// Is makes every TokenError match ErrInvalidToken.
func (e *TokenError) Is(target error) bool {
	return target == ErrInvalidToken
}

// TokenErrorKindOf extracts the kind of a token error, or "" when err is not one.
func TokenErrorKindOf(err error) TokenErrorKind {
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.Kind
	}
	return ""
}

// RejectReason names why the middleware refused a request.
// It is logged and counted but never sent to the client.
type RejectReason string

const (
	RejectMissingCredential RejectReason = "missing_credential"
	RejectMalformedHeader   RejectReason = "malformed_header"
	RejectTokenExpired      RejectReason = "token_expired"
	RejectTokenMalformed    RejectReason = "token_malformed"
	RejectTokenSignature    RejectReason = "token_bad_signature"
	RejectUnknownUser       RejectReason = "unknown_user"
	RejectInactiveUser      RejectReason = "inactive_user"
	RejectStoreError        RejectReason = "store_error"
)

// Rejection is the outcome of a failed credential resolution.
type Rejection struct {
	// Status is the HTTP status code to send.
	Status int

	// Reason is the internal failure class.
	Reason RejectReason

	// UserID is the subject of the credential, when known.
	UserID string

	// Err is the underlying error.
	Err error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return string(r.Reason) + ": " + r.Err.Error()
	}
	return string(r.Reason)
}

// Unwrap returns the underlying error.
func (r *Rejection) Unwrap() error {
	return r.Err
}

func rejectionForTokenError(err error) *Rejection {
	reason := RejectTokenMalformed
	switch TokenErrorKindOf(err) {
	case TokenExpired:
		reason = RejectTokenExpired
	case TokenBadSignature:
		reason = RejectTokenSignature
	}
	return &Rejection{Status: http.StatusUnauthorized, Reason: reason, Err: err}
}

// errorResponse is the JSON body of every rejection.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeRejection writes a uniform response that does not reveal which
// verification step failed.
func writeRejection(w http.ResponseWriter, rej *Rejection) {
	body := errorResponse{Error: "unauthorized", Message: "authentication required"}
	switch rej.Status {
	case http.StatusUnauthorized:
		w.Header().Set(WWWAuthenticateHeader, BearerScheme)
	case http.StatusForbidden:
		body = errorResponse{Error: "forbidden", Message: "access denied"}
	default:
		body = errorResponse{Error: "internal_error", Message: "internal server error"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.Status)
	_ = json.NewEncoder(w).Encode(body)
}
