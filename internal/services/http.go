package services

import (
	"fmt"
	"net/http"
	"strings"
)

// StatusError reports an HTTP response the provider clients could not use.
type StatusError struct {
	Provider   string
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Provider, e.Operation, e.StatusCode, strings.TrimSpace(e.Body))
}

// Unwrap tags the error with the sentinel marker matching the status code so
// errors.Is classification works without inspecting the code again.
func (e *StatusError) Unwrap() error {
	return MarkerForStatus(e.StatusCode)
}

// NewStatusError builds a provider-tagged StatusError.
func NewStatusError(provider, operation string, statusCode int, body string) error {
	return TagProvider(provider, &StatusError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: statusCode,
		Body:       body,
	})
}

// MarkerForStatus maps an HTTP status code to the sentinel used for
// classification and retry decisions.
func MarkerForStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrAuth
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimit
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return ErrTimeout
	case statusCode >= 500:
		return ErrProviderHTTP
	case statusCode >= 400:
		return ErrValidation
	default:
		return ErrProviderHTTP
	}
}
