package errors

import (
	"fmt"
)

// VigilError is the structured error type for vigil.
// It provides rich context for error handling, logging, and user presentation.
type VigilError struct {
	// Code is the unique error code (e.g., "ERR_201_SOURCE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Source, Journal, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *VigilError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VigilError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with VigilError.
func (e *VigilError) Is(target error) bool {
	if t, ok := target.(*VigilError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *VigilError) WithDetail(key, value string) *VigilError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *VigilError) WithSuggestion(suggestion string) *VigilError {
	e.Suggestion = suggestion
	return e
}

// New creates a new VigilError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *VigilError {
	return &VigilError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a VigilError from an existing error.
// The error's message becomes the VigilError message.
func Wrap(code string, err error) *VigilError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *VigilError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// SourceError creates a watch source error.
func SourceError(message string, cause error) *VigilError {
	return New(ErrCodeSourceUnavailable, message, cause)
}

// JournalError creates a journal persistence error.
// Journal errors are typically retryable.
func JournalError(message string, cause error) *VigilError {
	return New(ErrCodeJournalWrite, message, cause)
}

// PatternError creates a glob pattern validation error.
func PatternError(message string, cause error) *VigilError {
	return New(ErrCodeInvalidPattern, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *VigilError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a VigilError with the Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ve, ok := err.(*VigilError); ok {
		return ve.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ve, ok := err.(*VigilError); ok {
		return ve.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a VigilError.
// Returns empty string if not a VigilError.
func GetCode(err error) string {
	if ve, ok := err.(*VigilError); ok {
		return ve.Code
	}
	return ""
}

// GetCategory extracts the category from a VigilError.
// Returns empty string if not a VigilError.
func GetCategory(err error) Category {
	if ve, ok := err.(*VigilError); ok {
		return ve.Category
	}
	return ""
}
