package client

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultErrorMessage is displayed when the server gives no reason.
const DefaultErrorMessage = "Something went wrong"

var (
	// ErrAuthExpired is returned when the server denied the credential (403).
	// The session is invalidated before the error is returned.
	ErrAuthExpired = errors.New("session expired")
	// ErrNotAuthenticated is returned for authenticated calls without a credential: nothing is sent.
	ErrNotAuthenticated = errors.New("not authenticated")
)

type (
	// RequestError is a network / server failure (any non-auth failure).
	RequestError struct {
		Method string
		Path   string
		// HTTP status (0 for transport errors)
		Status int
		// User displayable message
		Message string
		Err     error
	}

	// ValidationError blocks a call before it is issued.
	ValidationError struct {
		Field   string
		Message string
	}
)

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}

	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Message)
}

// Unwrap returns the underlying transport error (if any).
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsAuthExpired checks if err signals the session invalidation.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// DisplayMessage returns a user displayable error message.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Message
	}
	if errors.Is(err, ErrAuthExpired) {
		return "Your session has expired, please log in again"
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return "Please log in first"
	}

	return err.Error()
}
