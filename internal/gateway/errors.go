package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth means the gateway rejected our credentials. Fatal until configuration is fixed.
	ErrAuth = errors.New("gateway: authentication failed")
	// ErrValidation means the gateway rejected the request as malformed. Not retryable as-is.
	ErrValidation = errors.New("gateway: invalid request")
	// ErrService covers 5xx, unexpected statuses, timeouts and transport errors. Retryable.
	ErrService = errors.New("gateway: service error")
)

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
	kind        error
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s (status %d, %s: %s)", e.kind, e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("%s (status %d)", e.kind, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.kind }

// IsRetryable reports whether the caller may retry the same logical attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrService)
}
