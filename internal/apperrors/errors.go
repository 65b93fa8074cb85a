// Package apperrors provides sentinel and custom error types for the application.
package apperrors

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist (e.g. feedback for an evicted result).
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrProviderUnavailable is the sentinel for upstream transport failures
// (network error, timeout, 5xx from the LLM API). Not retried automatically.
var ErrProviderUnavailable = &ProviderUnavailableError{}

// ProviderUnavailableError is a sentinel error for upstream calls that could not complete.
type ProviderUnavailableError struct {
	Message string
	Cause   error
}

// NewProviderUnavailableError creates a ProviderUnavailableError wrapping cause.
// The cause is kept for logs only and never surfaced to clients.
func NewProviderUnavailableError(message string, cause error) *ProviderUnavailableError {
	return &ProviderUnavailableError{Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *ProviderUnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "analysis provider unavailable"
}

// Unwrap returns the underlying transport error for logging.
func (e *ProviderUnavailableError) Unwrap() error {
	return e.Cause
}

// Is implements the error interface for error comparison.
func (e *ProviderUnavailableError) Is(target error) bool {
	_, ok := target.(*ProviderUnavailableError)

	return ok
}

// ErrMalformedResponse is the sentinel for upstream payloads that do not parse
// into the expected structured shape. Retrying the same prompt is unlikely to
// help, so this is never retried.
var ErrMalformedResponse = &MalformedResponseError{}

// MalformedResponseError is a sentinel error for unparseable provider payloads.
type MalformedResponseError struct {
	Message string
	Cause   error
}

// NewMalformedResponseError creates a MalformedResponseError wrapping cause.
func NewMalformedResponseError(message string, cause error) *MalformedResponseError {
	return &MalformedResponseError{Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "malformed provider response"
}

// Unwrap returns the underlying parse error for logging.
func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// Is implements the error interface for error comparison.
func (e *MalformedResponseError) Is(target error) bool {
	_, ok := target.(*MalformedResponseError)

	return ok
}
