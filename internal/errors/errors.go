// Package errors provides a lightweight structured error type (DochubError)
// for category-based classification and exit-code mapping in the CLI.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a dochub error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryManifest   ErrorCategory = "manifest"
	CategoryValidation ErrorCategory = "validation"

	// Planning errors
	CategoryCycle ErrorCategory = "cycle"

	// Build and processing errors
	CategoryBuild      ErrorCategory = "build"
	CategoryCompiler   ErrorCategory = "compiler"
	CategoryHub        ErrorCategory = "hub"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// DochubError is a structured error with category, retryability, and context
type DochubError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for DochubError
type ContextFields map[string]any

// Error implements the error interface
func (e *DochubError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *DochubError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *DochubError) WithContext(key string, value any) *DochubError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new DochubError
func New(category ErrorCategory, severity ErrorSeverity, message string) *DochubError {
	return &DochubError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new DochubError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *DochubError {
	return &DochubError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if dhe, ok := err.(*DochubError); ok {
		return dhe.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a DochubError
func GetCategory(err error) ErrorCategory {
	if dhe, ok := err.(*DochubError); ok {
		return dhe.Category
	}
	return CategoryInternal
}
