package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ApiResponse wraps data in the format expected by the frontend.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ServiceError maps a service-layer error onto the HTTP status space and
// writes the response. Internal errors get an opaque body; the detail goes to
// the log only.
func ServiceError(w http.ResponseWriter, logger *zap.Logger, errorCode string, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	var lockErr *apperrors.LockConflictError
	switch {
	case apperrors.IsValidation(err):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.As(err, &lockErr):
		status = http.StatusLocked
		message = lockErr.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrNotLockOwner):
		status = http.StatusConflict
		message = err.Error()
	default:
		logger.Error("Request failed", zap.String("error_code", errorCode), zap.Error(err))
	}

	if werr := ErrorResponse(w, status, errorCode, message); werr != nil {
		logger.Error("Failed to write error response", zap.Error(werr))
	}
}
