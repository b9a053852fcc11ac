package identity

import (
	"errors"
	"fmt"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
//   - Kind MUST be one of the sentinel kinds when applicable.
//   - Msg may include human-readable context; never include secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError reports a uniqueness conflict for a logical field ("email", "id").
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

// Unwrap maps email conflicts to ErrEmailAlreadyRegistered (which itself wraps ErrConflict).
func (e ConflictError) Unwrap() error {
	if e.Field == "email" {
		return ErrEmailAlreadyRegistered
	}
	return ErrConflict
}

// NotFoundError reports a missing identity.
type NotFoundError struct {
	Op       string
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrNotFound)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotFound, e.Resource)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// persistenceError reports that an in-memory mutation succeeded but could not be
// made durable.
func persistenceError(op string, cause error) error {
	return OpError{Op: op, Kind: ErrPersistenceUnavailable, Msg: cause.Error()}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err represents ErrNotFound (including NotFoundError).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput (validation kinds included).
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsPersistenceUnavailable reports whether durability was lost for this operation.
func IsPersistenceUnavailable(err error) bool { return errors.Is(err, ErrPersistenceUnavailable) }
