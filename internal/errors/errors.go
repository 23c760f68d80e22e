package errors

import (
	"errors"
	"fmt"
)

// Errors shared by the backend proxy handlers.
var (
	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")

	// Provider errors
	ErrOAuth2NotConfigured = errors.New("OAuth2 service not configured")
	ErrInvalidGrant        = errors.New("invalid grant")
	ErrInvalidToken        = errors.New("invalid token")
	ErrProviderUnavailable = errors.New("provider unavailable")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
