// ABOUTME: Sentinel errors returned by the identity service
// ABOUTME: Validation errors all wrap ErrInvalidInput so callers can map them together

package identity

import (
	"errors"
	"fmt"
)

// ErrInvalidCredential is returned when a secret does not match the stored hash.
var ErrInvalidCredential = errors.New("invalid credential")

// ErrAccountBanned is returned when a banned account tries to authenticate.
var ErrAccountBanned = errors.New("account is banned")

// ErrBootstrapConflict is returned when the super-admin username already
// belongs to an unprotected account.
var ErrBootstrapConflict = errors.New("bootstrap username belongs to an unprotected account")

// ErrInvalidInput is wrapped by every validation error.
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrInvalidUsername = fmt.Errorf("%w: username must be 3-32 characters, start with a letter, and contain only letters, numbers, and underscores", ErrInvalidInput)
	ErrInvalidPassword = fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	ErrInvalidEmail    = fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	ErrInvalidRole     = fmt.Errorf("%w: role must be client or admin", ErrInvalidInput)
)
