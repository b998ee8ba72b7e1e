package handler

// Response helpers shared by all API endpoints. Every error response has
// the same shape:
//
//	{"error": "not_found", "message": "user not found with key a@x.com"}
//
// so clients always know what fields to expect, whatever the status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"profile-service/internal/apperror"
)

// ErrorResponse is the standard error format returned by all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body; once Encode writes
// bytes the headers are on the wire.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already sent; the only option left is to log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the HTTP taxonomy and sends it.
//
// This is the only place domain errors meet status codes:
//
//	ErrValidation   → 400  ErrUnauthorized → 401  ErrForbidden → 403
//	ErrNotFound     → 404  ErrConflict     → 409  ErrUnavailable → 500
//
// The service layer stays protocol-agnostic, and raw internal errors
// (SQL text, provider library messages) never reach the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusInternalServerError
			errorType = "unavailable"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error: generic 500, no internal detail leaks to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
