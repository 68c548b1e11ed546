package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
)

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	enc.Encode(v)
}

// writeError renders err as the JSON error body. Errors that are not a
// ProcessingError are reported without their text.
func writeError(w http.ResponseWriter, requestID string, err error) {
	var pe *apperrors.ProcessingError
	if !errors.As(err, &pe) {
		pe = &apperrors.ProcessingError{
			Code:      "INTERNAL_ERROR",
			Message:   "Internal server error",
			Timestamp: time.Now(),
		}
	}

	body := pe.ToMap()
	if requestID != "" {
		body["request_id"] = requestID
	}
	delete(body, "cause")

	writeJson(w, statusFor(pe.Code), body)
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrorImageRead, apperrors.ErrorUnsupportedFormat, apperrors.ErrorInvalidRequest:
		return http.StatusBadRequest
	case apperrors.ErrorNoNameFound:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
