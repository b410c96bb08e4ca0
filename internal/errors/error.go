package errors

import (
	"errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryInit       Category = "init"
	CategoryProtocol   Category = "protocol"
	CategoryTransport  Category = "transport"
	CategoryDependency Category = "dependency"
	CategoryBinding    Category = "binding"
	CategoryConfig     Category = "config"
	CategoryCLI        Category = "cli"
)

// ShinyError is a structured error with a code, hints and documentation.
type ShinyError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *ShinyError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *ShinyError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *ShinyError) WithSuggestion(s string) *ShinyError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *ShinyError) WithDetail(d string) *ShinyError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *ShinyError) Wrap(err error) *ShinyError {
	e.Wrapped = err
	return e
}

// New creates a ShinyError from a registered error code.
func New(code string) *ShinyError {
	template, ok := registry[code]
	if !ok {
		return &ShinyError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &ShinyError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
		DocURL:     template.DocURL,
	}
}

// Newf creates a new ShinyError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *ShinyError {
	return &ShinyError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a ShinyError. An error that already
// contains a ShinyError is returned unchanged.
func FromError(err error, code string) *ShinyError {
	if err == nil {
		return nil
	}
	var se *ShinyError
	if errors.As(err, &se) {
		return se
	}
	return New(code).Wrap(err)
}

// CodeOf returns the code of the first ShinyError in err's chain.
func CodeOf(err error) string {
	var se *ShinyError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
