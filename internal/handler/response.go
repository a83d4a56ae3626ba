package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/service"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error codes sent in ErrorResponse.Error.
const (
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeInternal     = "internal_error"
)

var errInvalidBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set(auth.WWWAuthenticateHeader, auth.BearerScheme)
	}
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeError maps a service error to its HTTP response. Anything that is
// not a known business error is logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errInvalidBody):
		writeErrorCode(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, service.ErrNotAuthenticated):
		writeErrorCode(w, http.StatusUnauthorized, CodeUnauthorized, "not authenticated")
	case errors.Is(err, service.ErrCurrentPasswordInvalid):
		writeErrorCode(w, http.StatusUnauthorized, CodeUnauthorized, "current password is incorrect")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeErrorCode(w, http.StatusUnauthorized, CodeUnauthorized, "invalid username or password")
	case domain.IsValidation(err):
		writeErrorCode(w, http.StatusBadRequest, CodeValidation, validationMessage(err))
	case errors.Is(err, domain.ErrAccessDenied):
		writeErrorCode(w, http.StatusForbidden, CodeForbidden, "access denied")
	case errors.Is(err, domain.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, CodeNotFound, notFoundMessage(err))
	default:
		logger(r).Error().
			Err(err).
			Str("user_id", auth.PrincipalFrom(r.Context()).String()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeErrorCode(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// validationMessage keeps the most specific part of a wrapped validation error.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func notFoundMessage(err error) string {
	for _, known := range []error{domain.ErrNotebookNotFound, domain.ErrSourceNotFound, domain.ErrNoteNotFound, domain.ErrUserNotFound} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return domain.ErrNotFound.Error()
}

func logger(r *http.Request) *zerolog.Logger {
	return hlog.FromRequest(r)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errInvalidBody
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	return nil
}

// listInput reads order_by, desc, limit and offset query parameters.
func listInput(r *http.Request) (service.ListInput, error) {
	q := r.URL.Query()
	in := service.ListInput{OrderBy: q.Get("order_by")}

	var err error
	if v := q.Get("desc"); v != "" {
		desc, err := boolParam(v)
		if err != nil {
			return in, err
		}
		in.Descending = &desc
	}
	if in.Limit, err = intParam(q.Get("limit")); err != nil {
		return in, err
	}
	if in.Offset, err = intParam(q.Get("offset")); err != nil {
		return in, err
	}
	return in, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, service.ErrInvalidPaging
	}
	return n, nil
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.NewDomainError(domain.ErrValidation, "invalid boolean "+strconv.Quote(v), "")
	}
	return b, nil
}
