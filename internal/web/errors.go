package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with full technical detail server-side and returned
// to clients as a sanitized JSON body. Domain errors from the importer map
// onto specific status codes and machine-readable codes; anything
// unrecognized collapses to a generic 500.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerkit/importer/internal/importer"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError logs the technical error and writes the mapped JSON response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := mapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", resp.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSONStatus(w, status, resp)
}

// respondBadRequest writes a 400 with a literal client-safe message.
func (s *Server) respondBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	s.respondErrorStatus(w, r, http.StatusBadRequest, msg, "BAD_REQUEST")
}

// respondErrorStatus writes an error with an explicit status and code.
func (s *Server) respondErrorStatus(w http.ResponseWriter, r *http.Request, status int, msg, code string) {
	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", msg,
		"code", code,
		"request_id", middleware.GetReqID(r.Context()),
	)
	writeJSONStatus(w, status, &ErrorResponse{Error: msg, Code: code})
}

// mapError translates importer domain errors into HTTP status codes and
// client-safe messages.
func mapError(err error) (int, *ErrorResponse) {
	switch {
	case errors.Is(err, importer.ErrJobNotFound):
		return http.StatusNotFound, &ErrorResponse{Error: "import job not found", Code: "JOB_NOT_FOUND"}

	case errors.Is(err, importer.ErrJobTerminal):
		return http.StatusConflict, &ErrorResponse{Error: "import job already finished", Code: "JOB_TERMINAL"}

	case errors.Is(err, importer.ErrTooManyJobs):
		return http.StatusTooManyRequests, &ErrorResponse{Error: "too many concurrent import jobs, try again later", Code: "TOO_MANY_JOBS"}

	case importer.IsParseError(err):
		return http.StatusBadRequest, &ErrorResponse{Error: err.Error(), Code: "PARSE_ERROR"}

	default:
		return http.StatusInternalServerError, &ErrorResponse{Error: "internal server error", Code: "INTERNAL"}
	}
}

// writeJSON encodes v as JSON with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON with the given status. Encoding errors
// are logged since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
