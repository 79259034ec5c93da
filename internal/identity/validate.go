// ABOUTME: Input validation for registration and profile changes
// ABOUTME: Usernames follow the admin console rule; emails are parsed with net/mail

package identity

import (
	"net/mail"
	"regexp"
)

// MinPasswordLength is the shortest secret accepted at registration or reset.
const MinPasswordLength = 6

// maxPasswordLength is bcrypt's input limit.
const maxPasswordLength = 72

var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,31}$`)

// ValidateUsername checks the username format.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword checks the secret length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > maxPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

// ValidateEmail accepts an empty address or a bare addr-spec.
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}
