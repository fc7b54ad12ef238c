package errors

import (
	"errors"
	"fmt"
)

// LexError is the structured error type for lexstore.
// It provides rich context for error handling, logging, and user presentation.
type LexError struct {
	// Code is the unique error code (e.g., "ERR_303_RATE_LIMITED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Cache, Remote, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Kind is the taxonomy classification driving retry decisions.
	Kind Kind

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
func (e *LexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with LexError.
func (e *LexError) Is(target error) bool {
	if t, ok := target.(*LexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *LexError) WithDetail(key, value string) *LexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *LexError) WithSuggestion(suggestion string) *LexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LexError with the given code and message.
// Category, severity, kind, and retryable flag are derived from the code.
func New(code string, message string, cause error) *LexError {
	return &LexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Kind:      kindFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a LexError from an existing error.
// The error's message becomes the LexError message.
func Wrap(code string, err error) *LexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *LexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// CacheError creates a cache persistence error.
func CacheError(message string, cause error) *LexError {
	return New(ErrCodeCachePersist, message, cause)
}

// RemoteError creates a remote transport error.
// Remote transport errors are typically retryable.
func RemoteError(message string, cause error) *LexError {
	return New(ErrCodeRemoteUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *LexError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *LexError {
	return New(ErrCodeInternal, message, cause)
}

// KindOf classifies any error, looking through wrap chains.
// Errors that are not LexError (or do not wrap one) report KindInternal.
func KindOf(err error) Kind {
	var le *LexError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

// IsRetryable checks if an error is retryable.
// Looks through wrap chains so retry helpers can classify wrapped failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var le *LexError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var le *LexError
	if errors.As(err, &le) {
		return le.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a LexError.
// Returns empty string if not a LexError.
func GetCode(err error) string {
	var le *LexError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// GetCategory extracts the category from a LexError.
// Returns empty string if not a LexError.
func GetCategory(err error) Category {
	var le *LexError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}
