package core

import (
	"errors"
	"fmt"

	"chatty/cmd/identity"
)

// Categories. Every error returned by Service matches exactly one of them with errors.Is.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
)

// Precise causes. They are for logs, metrics and tests; clients only see the category.
var (
	ErrValidation           = errors.New("validation failed")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrRefreshNotRecognized = errors.New("refresh token not recognized")
	ErrRefreshExpired       = errors.New("refresh token expired")
	ErrRefreshReuseDetected = errors.New("refresh token reuse detected")
	ErrWrongPassword        = errors.New("current password does not match")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrUserNameTaken        = errors.New("username already registered")
)

// Error is a categorized failure of a Service operation.
//
// Error() prints only the operation and the category so it is safe to show to
// clients; errors.Is also matches Cause.
type Error struct {
	Op    string
	Kind  error
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newError(op string, kind, cause error) error {
	return &Error{Op: op, Kind: kind, Cause: cause}
}

func validation(op, msg string) error {
	return newError(op, ErrBadRequest, fmt.Errorf("%w: %s", ErrValidation, msg))
}

// Category returns the category of err, or nil when err is not a categorized failure.
func Category(err error) error {
	for _, k := range []error{ErrBadRequest, ErrUnauthorized, ErrConflict, ErrNotFound} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ConflictField reports which field caused a Conflict: identity.FieldEmail or identity.FieldUserName.
func ConflictField(err error) string {
	switch {
	case errors.Is(err, ErrEmailTaken):
		return identity.FieldEmail
	case errors.Is(err, ErrUserNameTaken):
		return identity.FieldUserName
	default:
		return identity.ConflictField(err)
	}
}
