// ABOUTME: Error types for Wazuh manager and indexer API failures.
// ABOUTME: APIError carries the HTTP status so callers can tell "not found" from other failures.

package wazuh

import (
	"errors"
	"fmt"
	"net/http"
)

// Client errors
var (
	ErrSessionClosed = errors.New("session closed")
	ErrNoToken       = errors.New("authentication response carried no token")
	ErrInvalidConfig = errors.New("invalid client configuration")
)

// APIError is returned for any failed call against the Wazuh APIs.
// Transport failures use StatusCode 503.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Body != "":
		return fmt.Sprintf("%s: %d - %s", e.Message, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %d", e.Message, e.StatusCode)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the API answered 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an
// APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
