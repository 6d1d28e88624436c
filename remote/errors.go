package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a request stays unauthorized after the
	// one refresh-and-retry the session layer is allowed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for a 404 from the backend.
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}
