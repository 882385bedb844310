// Package apperr classifies the errors the workspace surfaces to users.
//
// Kinds:
//   - Validation: bad input (URL, import document, settings), recovered locally
//   - NotFound: a window index that does not exist
//   - Storage: serialization or record store failure, state not yet durable
//   - Generation: device catalog misconfiguration, fatal at startup
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the error category
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindStorage    Kind = "storage"
	KindGeneration Kind = "generation"
)

// Error is a categorized error with a user-facing message
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Validation creates a validation error
func Validation(op, message string) error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// Validationf creates a validation error with a formatted message
func Validationf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error
func NotFound(op, message string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// Storage wraps a storage failure
func Storage(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// Generation wraps a generation failure
func Generation(op string, err error) error {
	return &Error{Kind: KindGeneration, Op: op, Err: err}
}

// KindOf returns the kind of the first categorized error in the chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Message returns the user-facing message of a categorized error, or err.Error()
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
