package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a fatal configuration problem; the pipeline does not start.
	ErrConfig = errors.New("invalid configuration")

	// ErrNotFound is returned by Store.Get for absent keys.
	ErrNotFound = errors.New("key not found")

	// ErrStorageUnavailable marks a store that cannot be reached or used.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrClosed is returned by Flush once the pipeline has been shut down.
	ErrClosed = errors.New("pipeline closed")
)

// StatusError is a transport error carrying a non-2xx response status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("collector responded %d", e.StatusCode)
	}
	return fmt.Sprintf("collector responded %d: %s", e.StatusCode, e.Body)
}
