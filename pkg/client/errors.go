package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrNetwork is returned for transport and timeout failures.
	ErrNetwork = errors.New("network error")

	// ErrAuth is returned when the service rejects credentials or a login
	// cannot identify the user.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound is returned when a required single entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when the service answers 429.
	ErrRateLimited = errors.New("rate limited")
)

// APIError represents a failed RateBeer request with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("RateBeer %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("RateBeer %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is maps the error class onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.ErrorClass == ErrorClassNetwork
	case ErrAuth:
		return e.ErrorClass == ErrorClassAuth
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrRateLimited:
		return e.ErrorClass == ErrorClassRateLimit
	default:
		return false
	}
}
