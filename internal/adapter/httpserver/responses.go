// Package httpserver provides the chi router, request validation and the
// uniform success/error JSON envelope for the job engine's HTTP API.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/stockanalysis/job-engine/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain sentinel error to its HTTP status and error code
// and writes the uniform envelope. fallback is used for unmapped errors
// arising from a named operation (e.g. "ANALYSIS_ERROR" for the analyze
// endpoint's unexpected faults), so the same domain.ErrNotFound can surface
// as different codes depending on which resource was being looked up.
func writeError(w http.ResponseWriter, err error, details interface{}, fallback string) {
	status, code := classify(err, fallback)
	writeJSON(w, status, errorEnvelope{Error: apiError{
		Code:      code,
		Message:   err.Error(),
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}})
}

// writeInternalError writes a generic 500 without echoing err's message to
// the client. Callers log err themselves before calling this.
func writeInternalError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: apiError{
		Code:      code,
		Message:   "internal error",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}})
}

func classify(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, domain.ErrInvalidTicker):
		return http.StatusBadRequest, "INVALID_TICKER"
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, "JOB_NOT_FOUND"
	case errors.Is(err, domain.ErrJobDuplicate):
		return http.StatusConflict, "JOB_DUPLICATE"
	case errors.Is(err, domain.ErrJobCancelInvalid):
		return http.StatusConflict, "JOB_CANCEL_INVALID"
	case errors.Is(err, domain.ErrJobStartFailed):
		return http.StatusInternalServerError, "JOB_START_FAILED"
	case errors.Is(err, domain.ErrWatchlistDuplicate):
		return http.StatusConflict, "WATCHLIST_DUPLICATE"
	case errors.Is(err, domain.ErrWatchlistNotFound):
		return http.StatusNotFound, "WATCHLIST_NOT_FOUND"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, fallback
	default:
		return http.StatusInternalServerError, fallback
	}
}
