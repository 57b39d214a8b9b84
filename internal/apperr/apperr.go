// Package apperr defines the error taxonomy shared by every layer of the gateway.
// Each failure carries a machine-readable Kind so the dispatcher can report a
// stable category to the caller while keeping the underlying message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	UnknownOperation        Kind = "UnknownOperation"
	MissingField            Kind = "MissingField"
	TypeMismatch            Kind = "TypeMismatch"
	InvalidEnumValue        Kind = "InvalidEnumValue"
	DisallowedStatementKind Kind = "DisallowedStatementKind"
	ConnectionError         Kind = "ConnectionError"
	MalformedIdentifier     Kind = "MalformedIdentifier"
	ResourceNotFound        Kind = "ResourceNotFound"
	ObjectNotFound          Kind = "ObjectNotFound"
	ConstraintViolation     Kind = "ConstraintViolation"
	QueryError              Kind = "QueryError"
	Timeout                 Kind = "Timeout"
)

// Error wraps an error with a kind, a human-friendly message and, for
// validation failures, the offending field.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error             { return &Error{Kind: kind, Message: msg} }
func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Message: msg, Err: err} }

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FieldError builds a validation failure bound to a single argument field.
func FieldError(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, Message: msg}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
