// Package errors provides centralized, categorized error construction for
// the ingestion pipeline. Every skip reason recorded in the state store
// (spec.md §3 SkipRecord, §7 error taxonomy) traces back to one of these
// categories so callers can branch on cause without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"time"
)

// ErrorCategory groups errors by the subsystem and failure mode that
// produced them.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryNetwork       ErrorCategory = "network"
	CategoryDatabase      ErrorCategory = "database"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryValidation    ErrorCategory = "validation"
	CategoryProcessing    ErrorCategory = "processing"
	CategoryTranscription ErrorCategory = "transcription"
	CategoryConversion    ErrorCategory = "conversion"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRetry         ErrorCategory = "retry"
)

// ComponentUnknown is used when no component name was supplied.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with component, category and free-form
// context, letting logging and skip-record code extract structured
// detail instead of parsing Error() strings.
type EnhancedError struct {
	Err       error
	component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	mu sync.RWMutex
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }

func (ee *EnhancedError) Unwrap() error { return ee.Err }

func (ee *EnhancedError) Is(target error) bool {
	var other *EnhancedError
	if stderrors.As(target, &other) {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// Component returns the component name, defaulting to ComponentUnknown.
func (ee *EnhancedError) Component() string {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// GetContext returns a copy of the error's context map.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	out := make(map[string]any, len(ee.Context))
	for k, v := range ee.Context {
		out[k] = v
	}
	return out
}

// ErrorBuilder provides a fluent interface for constructing EnhancedErrors.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts a builder wrapping an existing error.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts a builder with a formatted message.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build finalizes the EnhancedError.
func (eb *ErrorBuilder) Build() *EnhancedError {
	return &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Is reports whether err matches target, the same as errors.Is.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As reports whether err can be assigned to target, the same as errors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }

// IsCategory reports whether err is an EnhancedError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}
