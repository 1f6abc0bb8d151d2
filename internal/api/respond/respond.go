// Package respond centralizes JSON responses and the mapping from
// domain errors to HTTP status codes.
package respond

import (
	"encoding/json"
	"net/http"

	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

// ErrorBody is the uniform error envelope
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes v as a JSON response with the given status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Get().Errorw("Failed to encode response", "error", err)
		}
	}
}

// Error maps a domain error onto an HTTP status and writes the envelope
func Error(w http.ResponseWriter, err error) {
	JSON(w, statusFor(err), ErrorBody{Error: err.Error()})
}

// BadRequest writes a 400 with the given message
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidInput),
		errors.Is(err, errors.ErrActiveInvestmentExists),
		errors.Is(err, errors.ErrNoActiveInvestment),
		errors.Is(err, errors.ErrSameStrategy):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errors.ErrChainUnavailable),
		errors.Is(err, errors.ErrAgentUnavailable),
		errors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
