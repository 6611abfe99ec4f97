// Package errors provides the standardized error taxonomy of the analysis service
// and its mapping onto HTTP responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrCodeMalformedBody ErrorCode = "VALIDATION_MALFORMED_BODY"
	ErrCodeTooLarge      ErrorCode = "VALIDATION_TOO_LARGE"

	ErrCodeServiceNotConfigured ErrorCode = "SERVICE_NOT_CONFIGURED"
	ErrCodeUpstreamTimeout      ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamCallFailed   ErrorCode = "UPSTREAM_CALL_FAILED"
	ErrCodeUpstreamAuthFailed   ErrorCode = "UPSTREAM_AUTH_FAILED"
	ErrCodeEmptyResponse        ErrorCode = "EMPTY_UPSTREAM_RESPONSE"

	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error. Message is what the
// caller sees; Details stays in the logs.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// HTTPStatus returns the transport status for the error code.
func (e *StandardError) HTTPStatus() int {
	return HTTPStatus(e.Code)
}

// ==========================
// Validation errors
// ==========================

// NewMissingFieldError reports an absent or empty required field.
func NewMissingFieldError(field, message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingField,
		Message:   message,
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedBodyError reports a body that is not a JSON object.
func NewMalformedBodyError(message string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeMalformedBody,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTooLargeError reports a body or transcript over its ceiling.
func NewTooLargeError(message string, size, limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeTooLarge,
		Message:   message,
		Details:   fmt.Sprintf("size: %d, limit: %d", size, limit),
		Retryable: false,
		Metadata: map[string]interface{}{
			"size":  size,
			"limit": limit,
		},
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// Upstream errors
// ==========================

// NewServiceNotConfiguredError is returned for every analysis when no API key is set.
func NewServiceNotConfiguredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeServiceNotConfigured,
		Message:   "AI service not configured. API key is missing.",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamTimeoutError creates a timeout error for the LLM call. attempt is
// the attempt that timed out; a timed-out retry asks for a much shorter input.
func NewUpstreamTimeoutError(attempt int, err error) *StandardError {
	msg := "Analysis timed out. Please try with a shorter transcript."
	if attempt > 1 {
		msg = "Analysis timed out. Please try again with a much shorter transcript."
	}
	return &StandardError{
		Code:      ErrCodeUpstreamTimeout,
		Message:   msg,
		Details:   errDetails(err),
		Retryable: true,
		Metadata:  map[string]interface{}{"attempt": attempt},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUpstreamAuthError reports a rejected API credential.
func NewUpstreamAuthError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamAuthFailed,
		Message:   "Invalid Gemini API Key. Please check your configuration.",
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUpstreamCallError wraps any other failure of the LLM call.
func NewUpstreamCallError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamCallFailed,
		Message:   fmt.Sprintf("An error occurred processing your request: %s", errDetails(err)),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewEmptyResponseError reports a generation without text. blockReason is the
// upstream explanation, if any.
func NewEmptyResponseError(blockReason string) *StandardError {
	msg := "AI service returned no content."
	if blockReason != "" {
		msg = fmt.Sprintf("%s (Reason: %s)", msg, blockReason)
	}
	return &StandardError{
		Code:      ErrCodeEmptyResponse,
		Message:   msg,
		Details:   blockReason,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// Routing errors
// ==========================

func NewNotFoundError(path string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "The requested resource was not found.",
		Details:   fmt.Sprintf("path: %s", path),
		Timestamp: time.Now().UTC(),
	}
}

func NewMethodNotAllowedError(method, path string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMethodNotAllowed,
		Message:   "The method is not allowed for the requested URL.",
		Details:   fmt.Sprintf("method: %s, path: %s", method, path),
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError hides details of unexpected failures from the caller.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "An unexpected error occurred. Please try again later.",
		Details:   errDetails(err),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// Utility Functions
// ==========================

// HTTPStatus maps an error code to its HTTP status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeMissingField, ErrCodeMalformedBody:
		return http.StatusBadRequest
	case ErrCodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsClientError reports whether the code is the caller's mistake.
func IsClientError(code ErrorCode) bool {
	return HTTPStatus(code) < http.StatusInternalServerError
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.HasPrefix(codeStr, "UPSTREAM") || code == ErrCodeEmptyResponse:
		return "UPSTREAM"
	case code == ErrCodeServiceNotConfigured:
		return "CONFIGURATION"
	case code == ErrCodeNotFound || code == ErrCodeMethodNotAllowed:
		return "ROUTING"
	default:
		return "OTHER"
	}
}
