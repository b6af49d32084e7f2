package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error for transport mapping and retry policy.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindPrecondition Kind = "precondition"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is a typed application error. Precondition errors are deterministic
// and must not be retried; conflict errors are transient and safe to retry
// with backoff (the caller owns retry policy).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind and Code so sentinel errors compare with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// New creates a typed application error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches an underlying cause to a typed application error.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// NewValidationError reports malformed input.
func NewValidationError(message string) *Error {
	return New(KindValidation, "VALIDATION_FAILED", message)
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return New(KindNotFound, "NOT_FOUND", fmt.Sprintf("%s %s not found", entity, id))
}

// NewForbiddenError reports an actor acting outside its permissions.
func NewForbiddenError(message string) *Error {
	return New(KindForbidden, "FORBIDDEN", message)
}

// NewUnauthorizedError reports a missing or invalid identity.
func NewUnauthorizedError(message string) *Error {
	return New(KindUnauthorized, "UNAUTHORIZED", message)
}

// NewPreconditionError reports a deterministic precondition failure.
func NewPreconditionError(code, message string) *Error {
	return New(KindPrecondition, code, message)
}

// NewConflictError reports a transient lock or isolation failure.
func NewConflictError(message string) *Error {
	return New(KindConflict, "CONFLICT", message)
}

// KindOf returns the Kind of err if it is an application error, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err is a transient conflict worth retrying.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConflict
}
