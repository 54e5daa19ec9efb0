// Package apperr defines the error kinds shared by the store, the lifecycle
// manager and the HTTP boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Client kinds: the request itself is wrong.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrInvalidName       = errors.New("invalid name")
)

// Server kinds.
var (
	// ErrInconsistent reports a failed post-condition check after a mutation.
	ErrInconsistent = errors.New("consistency check failed")
	// ErrUpstream reports a failure inside the document store or renderer.
	ErrUpstream = errors.New("upstream failure")
)

// IsClient reports whether err is caused by the caller rather than the server.
func IsClient(err error) bool {
	switch {
	case errors.Is(err, ErrInconsistent), errors.Is(err, ErrUpstream):
		return false
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrInvalidDocument),
		errors.Is(err, ErrInvalidName):
		return true
	}
	return false
}

// HTTPStatus maps an error to the status code returned at the HTTP boundary.
func HTTPStatus(err error) int {
	if IsClient(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
