package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found on server")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	// Detail is the server-provided message, or the status text.
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// Unwrap maps the status code to a sentinel error.
func (e *APIError) Unwrap() error {
	return mapStatus(e.StatusCode)
}

func mapStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound, code == http.StatusGone:
		return ErrNotFound
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return ErrUnavailable
	default:
		return nil
	}
}

// TransportError is a failure to get any response from the server.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

// Unwrap exposes both ErrUnavailable and the underlying cause.
func (e *TransportError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// Diagnostic renders err as the short message stored next to a record whose
// push failed.
func Diagnostic(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("HTTP %d: %s", apiErr.StatusCode, apiErr.Detail)
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.Error()
	}
	return err.Error()
}
