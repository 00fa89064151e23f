package api

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a non-2xx response from the REST API.
type HTTPError struct {
	StatusCode int
	Message    string // message reported by the server, if any
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// UserMessage is the server's own explanation, suitable for display.
func (e *HTTPError) UserMessage() string {
	return e.Message
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}
