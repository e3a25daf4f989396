// Package common provides shared helpers: error construction, the error kind
// taxonomy and small formatting utilities.
package common

import (
	"errors"
	"fmt"

	"github.com/pwless/pwless/logger"
)

// Error kinds. Callers branch on the kind to tell invalid input apart from an
// unreachable database or a failed provider ceremony.
const (
	// KindValidation marks errors caused by invalid caller input, including
	// uniqueness violations such as a duplicate username or primary email.
	KindValidation = "VALIDATION"
	// KindNotPreAuthorized marks a refused registration: no existing user
	// matched the identifier while pre-authorization is required.
	KindNotPreAuthorized = "NOT_PRE_AUTHORIZED"
	// KindProvider marks failures of the passkey provider API.
	KindProvider = "PROVIDER"
	// KindDatabase marks failed database statements that are not uniqueness
	// violations.
	KindDatabase = "DATABASE"
	// KindPartialDelete marks a user deletion where the local row is gone but
	// the remote provider account could not be removed.
	KindPartialDelete = "PARTIAL_DELETE"
)

// AppError is an error with a kind, an optional offending field and an
// optional wrapped cause. The original kind survives wrapping with
// fmt.Errorf("...: %w", err) and is recovered with errors.As.
type AppError struct {
	kind    string
	field   string
	message string
	err     error
}

func (e *AppError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.message, e.err.Error())
	}
	return e.message
}

func (e *AppError) Kind() string { return e.kind }

// Field names the input field the error applies to, or "" when the error is
// not tied to a single field.
func (e *AppError) Field() string { return e.field }

func (e *AppError) Unwrap() error { return e.err }

// NewAppError builds an error of the given kind wrapping an optional cause.
func NewAppError(kind string, message string, err error) *AppError {
	return &AppError{kind: kind, message: message, err: err}
}

// NewValidationError builds a field-level validation error.
func NewValidationError(field string, format string, a ...any) *AppError {
	return &AppError{kind: KindValidation, field: field, message: fmt.Sprintf(format, a...)}
}

// IsKind reports whether err or any error it wraps carries the given kind.
func IsKind(err error, kind string) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Kind() == kind
}

// KindOf returns the kind of err, or "" for plain errors.
func KindOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind()
	}
	return ""
}

// Recover absorbs a panic in the calling goroutine, logging it when msg is
// non-empty, and returns the panic value.
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}
