// Package errors provides a lightweight structured error type (ImportError)
// for category-based classification of importer failures in the pipeline and CLI.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of an import error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryNetwork ErrorCategory = "network"
	CategoryParse   ErrorCategory = "parse"

	// Output errors
	CategoryFileSystem ErrorCategory = "filesystem"

	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the run
	SeverityError   ErrorSeverity = "error"   // Stops the current topic
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded output
)

// ImportError is a structured error with category, severity, and context
type ImportError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for ImportError
type ContextFields map[string]any

// Error implements the error interface
func (e *ImportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *ImportError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *ImportError) WithContext(key string, value any) *ImportError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// WithSeverity overrides the severity chosen by a constructor.
func (e *ImportError) WithSeverity(severity ErrorSeverity) *ImportError {
	e.Severity = severity
	return e
}

// New creates a new ImportError
func New(category ErrorCategory, severity ErrorSeverity, message string) *ImportError {
	return &ImportError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new ImportError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *ImportError {
	return &ImportError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// As returns the first ImportError in err's chain.
func As(err error) (*ImportError, bool) {
	var ie *ImportError
	if stderrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if ie, ok := As(err); ok {
		return ie.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not an ImportError
func GetCategory(err error) ErrorCategory {
	if ie, ok := As(err); ok {
		return ie.Category
	}
	return CategoryInternal
}

// IsFatal reports whether err should stop the whole run.
func IsFatal(err error) bool {
	if ie, ok := As(err); ok {
		return ie.Severity == SeverityFatal
	}
	return false
}
