package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("get: %w", ErrNotFound), http.StatusBadRequest},
		{"exists", ErrAlreadyExists, http.StatusBadRequest},
		{"format", ErrUnsupportedFormat, http.StatusBadRequest},
		{"invalid document", ErrInvalidDocument, http.StatusBadRequest},
		{"inconsistent", fmt.Errorf("delete: %w", ErrInconsistent), http.StatusInternalServerError},
		{"plain", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestUpstreamWinsOverClientKind(t *testing.T) {
	// A store rejection carries both the upstream marker and its reason.
	err := errors.Join(ErrUpstream, ErrInvalidDocument)
	if IsClient(err) {
		t.Error("upstream failure must not be reported as a client error")
	}
}
