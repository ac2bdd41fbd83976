package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
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

// classifyError maps a service error onto an HTTP status and error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidType):
		return http.StatusUnsupportedMediaType, "invalid_type"
	case errors.Is(err, apperrors.ErrNoFile):
		return http.StatusBadRequest, "no_file"
	case errors.Is(err, apperrors.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported_format"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_parameter"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrProcessingFailure):
		return http.StatusUnprocessableEntity, "processing_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError writes the response for an error returned by a service. Server
// errors are logged and their details withheld from the client.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
		message = "Internal server error"
	} else {
		logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
