// Package errors provides custom error types for the streamchat client.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common cases
var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrNoKey           = errors.New("no signing key found")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrNoBody          = errors.New("response has no body")
	ErrBusy            = errors.New("a reply is still streaming")
	ErrFrameTooLarge   = errors.New("stream frame exceeds maximum size")
	ErrClientClosed    = errors.New("client is closed")
	ErrTimeout         = errors.New("request timed out")
)

// AuthError represents an authentication failure
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed: signing key may be invalid"
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// Is allows comparison with sentinel errors
func (e *AuthError) Is(target error) bool {
	if target == ErrAuthFailed {
		return true
	}
	_, ok := target.(*AuthError)
	return ok
}

// NewAuthError creates a new AuthError
func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

// APIError represents a non-success response from the server
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, msg)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, msg)
}

// Is reports 401 and 403 responses as authentication failures.
func (e *APIError) Is(target error) bool {
	if target == ErrAuthFailed {
		return e.StatusCode == 401 || e.StatusCode == 403
	}
	_, ok := target.(*APIError)
	return ok
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// WithBody attaches a (truncated) response body for diagnostics
func (e *APIError) WithBody(body string) *APIError {
	e.Body = body
	return e
}

// NetworkError wraps a transport-level failure
type NetworkError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("network error during %s (%s): %v", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err}
}

// NewNetworkErrorWithEndpoint creates a NetworkError that names the endpoint
func NewNetworkErrorWithEndpoint(op, endpoint string, err error) *NetworkError {
	return &NetworkError{Op: op, Endpoint: endpoint, Err: err}
}

// TimeoutError represents an exchange that hit its deadline.
// It is distinct from a user-initiated cancellation.
type TimeoutError struct {
	Message string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	switch {
	case e.Message != "" && e.After > 0:
		return fmt.Sprintf("request timed out after %s: %s", e.After, e.Message)
	case e.After > 0:
		return fmt.Sprintf("request timed out after %s", e.After)
	case e.Message != "":
		return fmt.Sprintf("request timed out: %s", e.Message)
	}
	return "request timed out"
}

// Is allows comparison with ErrTimeout
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(message string, after time.Duration) *TimeoutError {
	return &TimeoutError{Message: message, After: after}
}

// ParseError represents a response parsing error
type ParseError struct {
	Message string
	Payload string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Is allows comparison with sentinel errors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// NewParseError creates a new ParseError
func NewParseError(message, payload string) *ParseError {
	return &ParseError{Message: message, Payload: payload}
}

// IsAuthError reports whether err is an authentication failure,
// including 401/403 API responses.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// IsNetworkError reports whether err wraps a transport failure.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsTimeoutError reports whether err is a deadline expiry.
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// GetHTTPStatus returns the HTTP status carried by err, or 0.
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
