package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the verification service
 *
 * Every failure carries a code so the HTTP boundary can pick a status
 * without string matching. Nothing in the core retries.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Extraction errors
	ErrorImageRead     ErrorCode = "IMAGE_READ_ERROR"
	ErrorNoNameFound   ErrorCode = "NO_NAME_FOUND"
	ErrorMalformedName ErrorCode = "MALFORMED_NAME"

	// Capability provider errors
	ErrorOCRFailed ErrorCode = "OCR_FAILED"
	ErrorNERFailed ErrorCode = "NER_FAILED"

	// Request errors
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrorTooLarge          ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrorUnavailable       ErrorCode = "SERVICE_UNAVAILABLE"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"

	// Question answering errors
	ErrorIndexingFailed   ErrorCode = "INDEXING_FAILED"
	ErrorGenerationFailed ErrorCode = "GENERATION_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	RequestID string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Is matches any ProcessingError with the same code, so callers can write
// errors.Is(err, &ProcessingError{Code: ErrorNoNameFound}).
func (e *ProcessingError) Is(target error) bool {
	t, ok := target.(*ProcessingError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first ProcessingError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a ProcessingError with code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// Factory functions for common errors

func NewImageReadError(filename string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorImageRead,
		Message:   fmt.Sprintf("Could not decode image: %s", filename),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"filename": filename,
		},
		Cause: cause,
	}
}

func NewNoNameFoundError(fragments int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNoNameFound,
		Message:   "Could not extract a name from the document",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"fragments_scanned": fragments,
		},
	}
}

func NewMalformedNameError(candidate string, tokens int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorMalformedName,
		Message:   fmt.Sprintf("Name candidate %q split into %d tokens, expected 2", candidate, tokens),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"candidate": candidate,
			"tokens":    tokens,
		},
	}
}

func NewOCRFailedError(engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed in engine: %s", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewNERFailedError(provider string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNERFailed,
		Message:   fmt.Sprintf("Entity recognition failed in provider: %s", provider),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ner_provider": provider,
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(filename string, allowed []string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Invalid file format. Should be one of %v", allowed),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"filename": filename,
		},
	}
}

func NewInvalidRequestError(message string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidRequest,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewTooLargeError(limit int64) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorTooLarge,
		Message:   fmt.Sprintf("Request body exceeds %d bytes", limit),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"max_bytes": limit,
		},
	}
}

func NewUnavailableError(feature string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnavailable,
		Message:   fmt.Sprintf("%s is not configured", feature),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"feature": feature,
		},
	}
}

func NewStorageFailedError(operation string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   fmt.Sprintf("Storage operation failed: %s", operation),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause: cause,
	}
}

func NewIndexingFailedError(source string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorIndexingFailed,
		Message:   fmt.Sprintf("Failed to index document: %s", source),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"source": source,
		},
		Cause: cause,
	}
}

func NewGenerationFailedError(cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorGenerationFailed,
		Message:   "Failed to generate an answer",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// WithRequestID stamps the request id on e and returns it.
func (e *ProcessingError) WithRequestID(id string) *ProcessingError {
	e.RequestID = id
	return e
}

// ToMap converts error to map for JSON responses and audit rows
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"error":      e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.RequestID != "" {
		result["request_id"] = e.RequestID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
