package shared

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can render a specific message.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindStateConflict Kind = "STATE_CONFLICT"
	KindNotFound      Kind = "NOT_FOUND"
	KindPermission    Kind = "PERMISSION"
	KindRemote        Kind = "REMOTE"
	KindNetwork       Kind = "NETWORK"
	KindInternal      Kind = "INTERNAL"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = NewError(KindNotFound, "NOT_FOUND", "not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = NewError(KindPermission, "INVALID_CREDENTIALS", "invalid credentials")
	// ErrForbidden is returned when the operator role is below the required threshold.
	ErrForbidden = NewError(KindPermission, "FORBIDDEN", "operator role not allowed to perform this operation")
)

// Error is a classified domain error. Details carries structured values the
// caller may need to build a prompt (for example the number of parked vehicles).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

// NewError builds a classified error.
func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors by code so wrapped copies with details still compare equal.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Kind == other.Kind
}

// WithDetails returns a copy of the error carrying the given details.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrapf returns a copy of the error with a formatted message, keeping kind and code.
func (e *Error) Wrapf(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...))
	return &cp
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError extracts the classified error from a chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// UserSafeMessage returns a message suitable for API consumers.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := AsError(err); ok && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}
