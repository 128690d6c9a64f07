package evermark

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Error is the service-level error taxonomy. Every error crossing the API
// boundary carries a machine-readable code and an HTTP-style status.
type Error struct {
	Code    string
	Status  int
	Message string

	// ExistingTokenID is set on duplicate-content errors so callers can
	// point the user at the record that already exists.
	ExistingTokenID int64

	// Service names the third-party system behind an external-service error.
	Service string

	Err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(message string) *Error {
	return &Error{Code: "VALIDATION_ERROR", Status: http.StatusBadRequest, Message: message}
}

func NewNotFoundError(message string) *Error {
	if message == "" {
		message = "resource not found"
	}
	return &Error{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: message}
}

func NewDuplicateError(existingTokenID int64) *Error {
	return &Error{
		Code:            "DUPLICATE_CONTENT",
		Status:          http.StatusConflict,
		Message:         fmt.Sprintf("this content has already been evermarked as token %d", existingTokenID),
		ExistingTokenID: existingTokenID,
	}
}

func NewProcessingError(message string, err error) *Error {
	return &Error{Code: "PROCESSING_ERROR", Status: http.StatusUnprocessableEntity, Message: message, Err: err}
}

func NewExternalServiceError(service string, err error) *Error {
	return &Error{
		Code:    "EXTERNAL_SERVICE_ERROR",
		Status:  http.StatusServiceUnavailable,
		Message: fmt.Sprintf("%s service error: %v", service, err),
		Service: service,
		Err:     err,
	}
}

const maxURLLength = 2048

// ValidateURL rejects malformed input before the pipeline runs: empty
// strings, overlong URLs, non-absolute URLs, and non-HTTP(S) schemes.
func ValidateURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NewValidationError("url is required")
	}
	if len(trimmed) > maxURLLength {
		return NewValidationError(fmt.Sprintf("url is too long (maximum %d characters)", maxURLLength))
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return NewValidationError("invalid url format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return NewValidationError("only http and https urls are supported")
	}
	if parsed.Host == "" {
		return NewValidationError("url must be absolute")
	}
	return nil
}
