package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification. Use errors.Is against these.
var (
	ErrConfiguration        = errors.New("configuration error")
	ErrProviderNotFound     = errors.New("provider not found")
	ErrEmptyInput           = errors.New("empty input")
	ErrContentBlocked       = errors.New("content blocked")
	ErrProviderResponse     = errors.New("provider response error")
	ErrTransport            = errors.New("transport error")
	ErrStreamClosed         = errors.New("stream closed")
	ErrUnsupportedOperation = errors.New("unsupported provider operation")
)

// ProviderError represents a failure reported by (or about) a provider.
type ProviderError struct {
	Provider string
	Status   int
	Code     string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status=%d, code=%s)", e.Provider, e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap returns the sentinel classifying this error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ContentBlockedError is a provider safety rejection.
type ContentBlockedError struct {
	Provider string
	Reason   string
}

// Error implements the error interface.
func (e *ContentBlockedError) Error() string {
	return fmt.Sprintf("%s: content blocked, reason: %s", e.Provider, e.Reason)
}

// Unwrap returns ErrContentBlocked.
func (e *ContentBlockedError) Unwrap() error {
	return ErrContentBlocked
}

// ConfigurationError reports a missing credential or endpoint.
func ConfigurationError(provider, what string) error {
	return &ProviderError{Provider: provider, Message: what, Err: ErrConfiguration}
}

// ResponseError reports a malformed or error-carrying provider response.
func ResponseError(provider, message string) error {
	return &ProviderError{Provider: provider, Message: message, Err: ErrProviderResponse}
}

// TransportError wraps a network or decode failure.
func TransportError(provider string, err error) error {
	return &ProviderError{Provider: provider, Message: err.Error(), Err: ErrTransport}
}

// EmptyInputError reports a translated request with no content.
func EmptyInputError(provider string) error {
	return &ProviderError{Provider: provider, Message: "user input nothing", Err: ErrEmptyInput}
}
