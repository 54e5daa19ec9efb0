package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/arne-cl/rstWeb/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func errorBody(status int, msg string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{HTTPStatus: status, Message: msg}}
}

// writeError maps err to its status code and writes the JSON error body.
// Server-side failures are logged with the request path.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(status, err.Error()))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody(http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody(http.StatusMethodNotAllowed, "method "+r.Method+" not allowed on "+r.URL.Path))
}
