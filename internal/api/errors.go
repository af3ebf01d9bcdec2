// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/freesession/internal/gate"
	"github.com/ManuGH/freesession/internal/log"
)

// Error codes returned in the "error" field of JSON problem bodies.
const (
	CodeUnknownMount  = "unknown_mount"
	CodeNotStandalone = "not_standalone"
	CodeBadRequest    = "bad_request"
	CodeUnavailable   = "unavailable"
	CodeInternal      = "internal_error"
)

type problem struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeJSON(w, status, problem{
		Error:     code,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeGateError maps gate service errors onto HTTP problems.
func writeGateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gate.ErrUnknownMount):
		writeProblem(w, r, http.StatusNotFound, CodeUnknownMount, "page is not mounted; reload to continue")
	case errors.Is(err, gate.ErrNotStandalone):
		writeProblem(w, r, http.StatusConflict, CodeNotStandalone, "open the installed app to enable notifications")
	case errors.Is(err, gate.ErrClosed):
		writeProblem(w, r, http.StatusServiceUnavailable, CodeUnavailable, "shutting down")
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.internal_error").Msg("request failed")
		writeProblem(w, r, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
