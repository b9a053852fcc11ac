package identity

import (
	"errors"
	"fmt"

	"skillforge/cmd/internal/kv"
)

// Sentinel error kinds (stable for errors.Is and for mapping to user-facing messages).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
)

// Directory taxonomy. Validation kinds wrap ErrInvalidInput and the duplicate
// email kind wraps ErrConflict, so coarse checks keep working.
var (
	ErrInvalidCredentials     = errors.New("invalid_credentials")
	ErrEmailAlreadyRegistered = fmt.Errorf("email_already_registered: %w", ErrConflict)
	ErrMissingFields          = fmt.Errorf("missing_fields: %w", ErrInvalidInput)
	ErrSecretMismatch         = fmt.Errorf("secret_mismatch: %w", ErrInvalidInput)
	ErrWeakSecret             = fmt.Errorf("weak_secret: %w", ErrInvalidInput)

	// ErrPersistenceUnavailable is the kv port's ErrUnavailable under the directory's name.
	ErrPersistenceUnavailable = kv.ErrUnavailable
)
