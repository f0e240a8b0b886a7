package upstream

import (
	"errors"
	"fmt"
)

// TransportError is the single failure type of the upstream client. It covers
// connection errors, timeouts, non-2xx statuses and malformed bodies.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	var b []byte
	b = fmt.Appendf(b, "ai engine %s %s", e.Method, e.Path)
	if e.StatusCode != 0 {
		b = fmt.Appendf(b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b = fmt.Appendf(b, ": %s", e.Message)
	}
	if e.Err != nil {
		b = fmt.Appendf(b, ": %v", e.Err)
	}
	return string(b)
}

// Unwrap returns the underlying cause, if any.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err came from the upstream client.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
