package restapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is wrapped by APIError for HTTP 401 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTimeout is returned when the request did not complete within the client timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrNoResponse is returned when the request was sent but no response arrived.
	ErrNoResponse = errors.New("no response from server")

	// ErrInvalidResponse is returned when a 2xx body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid response body")

	ErrInvalidConfig = errors.New("invalid rest client config")
)

// APIError is a non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int

	// Message is the server-provided message, if any.
	Message string
	// Errors holds field-level validation messages keyed by field name.
	Errors map[string]string

	Err error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is (or wraps) a 401 response.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
