package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a model-call failure.
type ErrorKind string

const (
	ErrAuthentication ErrorKind = "authentication"
	ErrAccessDenied   ErrorKind = "access_denied"
	ErrNotFound       ErrorKind = "not_found"
	ErrInvalidRequest ErrorKind = "invalid_request"
	ErrRateLimit      ErrorKind = "rate_limit"
	ErrServer         ErrorKind = "server"
	ErrContextLength  ErrorKind = "context_length"
	ErrContentFilter  ErrorKind = "content_filter"
	ErrTimeout        ErrorKind = "timeout"
	ErrNetwork        ErrorKind = "network"
	ErrConfiguration  ErrorKind = "configuration"
	ErrUnknown        ErrorKind = "unknown"
)

// APIError is the error type for all model-call failures. Retryable is
// decided at classification time; Retry consults it via IsRetryable.
type APIError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
	RetryAfter *float64 // seconds, from rate limit headers when present
	Cause      error
}

func (e *APIError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Cause }

// NewAPIError builds an APIError of the given kind with retryability
// derived from the kind.
func NewAPIError(kind ErrorKind, provider, message string, cause error) *APIError {
	return &APIError{
		Kind:      kind,
		Provider:  provider,
		Message:   message,
		Retryable: kindRetryable(kind),
		Cause:     cause,
	}
}

func kindRetryable(kind ErrorKind) bool {
	switch kind {
	case ErrRateLimit, ErrServer, ErrTimeout, ErrNetwork, ErrUnknown:
		return true
	default:
		return false
	}
}

// ErrorFromStatusCode maps an HTTP status code to a classified APIError.
func ErrorFromStatusCode(statusCode int, provider, message string) *APIError {
	var kind ErrorKind
	switch statusCode {
	case 400, 422:
		kind = ErrInvalidRequest
	case 401:
		kind = ErrAuthentication
	case 403:
		kind = ErrAccessDenied
	case 404:
		kind = ErrNotFound
	case 408:
		kind = ErrTimeout
	case 413:
		kind = ErrContextLength
	case 429:
		kind = ErrRateLimit
	case 500, 502, 503, 504:
		kind = ErrServer
	default:
		kind = ErrUnknown
	}
	e := NewAPIError(kind, provider, message, nil)
	e.StatusCode = statusCode
	return e
}

// IsRetryable reports whether the error is safe to retry. Unclassified
// errors default to retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return true
}
