package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/sastik/logserver/internal/coldstore"
	"github.com/sastik/logserver/internal/logging"
)

// apiError is a request-scoped error carrying the HTTP status it maps to,
// per spec.md §7's error taxonomy.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

// ErrMalformedRequest maps to 400: bad query parameters, invalid filter
// values, limit out of bounds.
func ErrMalformedRequest(msg string) error { return &apiError{status: http.StatusBadRequest, msg: msg} }

// statusFor maps err to an HTTP status and a safe-to-expose message. Any
// error that isn't one of the known taxonomy members becomes a 500 with an
// opaque id — the real error is logged server-side, never in the response
// body (SPEC_FULL.md §6.2+).
func statusFor(err error, log *logging.Logger) (int, string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ae.msg
	}
	if errors.Is(err, coldstore.ErrNotFound) {
		return http.StatusNotFound, "record not found"
	}

	id := uuid.NewString()
	log.Error("internal error", logging.KV("error_id", id), logging.KVErr(err))
	return http.StatusInternalServerError, "internal error, reference id " + id
}
