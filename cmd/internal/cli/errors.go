package cli

import (
	"errors"

	"skillforge/cmd/identity"
	"skillforge/cmd/internal/auth/session"
)

// Exit codes.
const (
	ExitError       = 1
	ExitUnsignedIn  = 2
	ExitDenied      = 3
	ExitInvalid     = 4
	ExitUnavailable = 5
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, session.ErrNoSession):
		return ExitUnsignedIn
	case errors.Is(err, ErrForbidden), errors.Is(err, identity.ErrInvalidCredentials):
		return ExitDenied
	case errors.Is(err, identity.ErrInvalidInput), errors.Is(err, identity.ErrConflict):
		return ExitInvalid
	case identity.IsPersistenceUnavailable(err):
		return ExitUnavailable
	default:
		return ExitError
	}
}

// errorLine is the message shown for err.
func errorLine(err error) string {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return "Not signed in. Run 'skillforge login' first."
	case errors.Is(err, ErrForbidden):
		return "This view is for admins only."
	case errors.Is(err, identity.ErrInvalidCredentials):
		return "Invalid credentials. Please try again."
	case errors.Is(err, identity.ErrEmailAlreadyRegistered):
		return "User with this email already exists."
	case errors.Is(err, identity.ErrMissingFields):
		return "Please fill in all fields."
	case errors.Is(err, identity.ErrSecretMismatch):
		return "Passwords do not match. Please try again."
	case errors.Is(err, identity.ErrWeakSecret):
		return "Password is too weak. Use at least 6 characters."
	case identity.IsPersistenceUnavailable(err):
		return "Storage is unavailable: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
