package llms

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind is the closed taxonomy every adapter translates vendor
// failures into. Retryability is a property of the kind.
type ErrorKind string

const (
	ErrRateLimit          ErrorKind = "rate_limit"
	ErrTimeout            ErrorKind = "timeout"
	ErrServiceUnavailable ErrorKind = "service_unavailable"
	ErrAuthentication     ErrorKind = "authentication"
	ErrInvalidRequest     ErrorKind = "invalid_request"
	ErrUnknown            ErrorKind = "unknown"
)

// ProviderError is a vendor failure translated into the taxonomy.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Message  string

	// StatusCode is the HTTP status when the failure came off the wire.
	StatusCode int

	// RetryAfter is the vendor-supplied backoff hint, if any.
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// Retryable reports whether the orchestrator may retry this error with
// backoff. Authentication and invalid-request failures never are; unknown
// failures are not retried by default.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case ErrRateLimit, ErrTimeout, ErrServiceUnavailable:
		return true
	default:
		return false
	}
}

// NewProviderError builds a taxonomy error.
func NewProviderError(kind ErrorKind, provider, message string) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Message: message}
}

// AsProviderError unwraps err into a *ProviderError if possible.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindFromStatus maps an HTTP status to the taxonomy.
func KindFromStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuthentication
	case code == http.StatusBadRequest || code == http.StatusNotFound ||
		code == http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	case code == http.StatusRequestTimeout:
		return ErrTimeout
	case code >= 500:
		return ErrServiceUnavailable
	default:
		return ErrUnknown
	}
}

// errorFromHTTP translates a non-2xx vendor response into a ProviderError,
// honoring a Retry-After header when present.
func errorFromHTTP(provider string, statusCode int, body string, header http.Header) *ProviderError {
	pe := &ProviderError{
		Kind:       KindFromStatus(statusCode),
		Provider:   provider,
		Message:    fmt.Sprintf("status %d: %s", statusCode, truncate(body, 300)),
		StatusCode: statusCode,
	}
	if ra := header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			pe.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return pe
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
