package session

import "errors"

var (
	// ErrNotFound is returned when no record matches an ID.
	ErrNotFound = errors.New("refresh token not found")

	// ErrAlreadyRevoked is returned when a revocation targets a record that a
	// concurrent writer already revoked. Revocation fields are write-once.
	ErrAlreadyRevoked = errors.New("refresh token already revoked")

	// ErrDuplicateTokenHash is returned when a token hash is already stored.
	ErrDuplicateTokenHash = errors.New("duplicate refresh token hash")

	// ErrUnknownUser is returned when a record references a user that does not exist.
	ErrUnknownUser = errors.New("refresh token user does not exist")

	// ErrInvalidRecord is returned for records that cannot be persisted as given.
	ErrInvalidRecord = errors.New("invalid refresh token record")
)
