package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Client side taxonomy. Every failure the gateway hands back to a caller
// matches exactly one of these with errors.Is.
var (
	// ErrNetwork is a transport level failure, no response was received.
	ErrNetwork = errors.New("network error")
	// ErrUnauthorized is a 401. The gateway recovers it locally and only
	// surfaces ErrSessionExpired when that fails.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired is the only error that tears down global session state.
	ErrSessionExpired = errors.New("session expired")
	// ErrRateLimited is a 429, never retried automatically.
	ErrRateLimited = errors.New("rate limited")
	// ErrValidation covers every 4xx other than 401 and 429.
	ErrValidation = errors.New("validation error")
	// ErrServer covers 5xx responses.
	ErrServer = errors.New("server error")
)

// Server side errors
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrInvalidResetToken   = errors.New("invalid password reset token")
	ErrInvalidRequest      = errors.New("invalid request")

	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// APIError is a non-2xx response decoded into the taxonomy above.
type APIError struct {
	Status     int
	Message    string
	RetryAfter int // seconds, only set for 429
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (%d)", Classify(e.Status), e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", Classify(e.Status), e.Status, e.Message)
}

// Unwrap lets errors.Is match the sentinel for the status class.
func (e *APIError) Unwrap() error {
	return Classify(e.Status)
}

// Classify maps an HTTP status to its sentinel. Statuses below 400 return nil.
func Classify(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrServer
	case status >= 400:
		return ErrValidation
	}
	return nil
}

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
