// Package errors defines the categorized error type shared by the matching
// and reconciliation packages.
//
// Every failure surfaced by this module falls into one of four caller-facing
// categories: validation (bad input, always recoverable), not_found (missing
// transaction or payee pattern), conflict (corpus-wide uniqueness violations,
// lost conditional updates) and storage (ledger store failures, propagated
// unchanged). Parse and configuration categories cover the import pipeline
// and CLI wiring.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Category represents the caller-facing class of an error.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryNotFound      Category = "not_found"
	CategoryConflict      Category = "conflict"
	CategoryStorage       Category = "storage"
	CategoryParse         Category = "parse"
	CategoryConfiguration Category = "configuration"
)

// Code identifies a specific error condition within a category.
type Code string

const (
	// Validation codes
	CodeInvalidInput  Code = "invalid_input"
	CodeMissingField  Code = "missing_field"
	CodeInvalidAmount Code = "invalid_amount"
	CodeInvalidDate   Code = "invalid_date"
	CodeMalformedID   Code = "malformed_id"

	// Not-found codes
	CodeTransactionNotFound Code = "transaction_not_found"
	CodePatternNotFound     Code = "pattern_not_found"
	CodeAliasNotFound       Code = "alias_not_found"

	// Conflict codes
	CodeDuplicateAlias Code = "duplicate_alias"
	CodeAlreadyLinked  Code = "already_linked"

	// Storage codes
	CodeQueryFailed  Code = "query_failed"
	CodeUpdateFailed Code = "update_failed"

	// Parse codes
	CodeInvalidFormat Code = "invalid_format"
	CodeMissingColumn Code = "missing_column"

	// Configuration codes
	CodeInvalidConfig Code = "invalid_config"
)

// Error is the error type returned by every operation in this module.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Field      string            `json:"field,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithField records the machine-readable field name the error refers to.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithContext attaches a key/value pair to the error.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// ExitCode maps the error category to a process exit code for the CLI.
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryValidation, CategoryParse:
		return 2
	case CategoryNotFound:
		return 3
	case CategoryConflict:
		return 4
	case CategoryStorage:
		return 5
	case CategoryConfiguration:
		return 6
	default:
		return 1
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new categorized error.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Newf creates a new categorized error with a formatted message.
func Newf(category Category, code Code, format string, args ...interface{}) *Error {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with category and code. Returns nil when err
// is nil.
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// Validation creates a validation error for the named field.
func Validation(code Code, field, message string) *Error {
	return New(CategoryValidation, code, message).WithField(field)
}

// Validationf creates a validation error with a formatted message.
func Validationf(code Code, field, format string, args ...interface{}) *Error {
	return Validation(code, field, fmt.Sprintf(format, args...))
}

// NotFound creates a not-found error for the given entity and identifier.
func NotFound(code Code, entity, id string) *Error {
	return Newf(CategoryNotFound, code, "%s not found: %s", entity, id).
		WithContext("entity", entity).
		WithContext("id", id)
}

// Conflict creates a conflict error.
func Conflict(code Code, message string) *Error {
	return New(CategoryConflict, code, message)
}

// Conflictf creates a conflict error with a formatted message.
func Conflictf(code Code, format string, args ...interface{}) *Error {
	return Conflict(code, fmt.Sprintf(format, args...))
}

// Storage wraps a storage layer failure. The cause is preserved unchanged.
func Storage(code Code, operation string, err error) *Error {
	return Wrap(err, CategoryStorage, code, fmt.Sprintf("storage failure during %s", operation)).
		WithContext("operation", operation)
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, category Category) bool {
	e, ok := As(err)
	return ok && e.Category == category
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return IsCategory(err, CategoryValidation) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return IsCategory(err, CategoryNotFound) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return IsCategory(err, CategoryConflict) }

// IsStorage reports whether err is a storage error.
func IsStorage(err error) bool { return IsCategory(err, CategoryStorage) }
