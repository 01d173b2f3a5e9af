// Package http holds the plumbing shared by the AI provider clients:
// typed errors, retry with backoff, JSON recovery and request logging.
package http

import (
	"fmt"

	"github.com/cwhitney/diffscope/internal/domain"
)

// ErrorType classifies a provider HTTP failure.
type ErrorType int

const (
	ErrTypeAuthentication ErrorType = iota
	ErrTypeRateLimit
	ErrTypeOverloaded
	ErrTypeInvalidRequest
	ErrTypeTimeout
	ErrTypeUnknown
)

// String returns a human-readable description of the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeAuthentication:
		return "authentication error"
	case ErrTypeRateLimit:
		return "rate limit exceeded"
	case ErrTypeOverloaded:
		return "service overloaded"
	case ErrTypeInvalidRequest:
		return "invalid request"
	case ErrTypeTimeout:
		return "timeout"
	default:
		return "unknown error"
	}
}

// Error is a provider HTTP failure with enough context for retry
// decisions and user-facing classification.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Provider   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (status: %d)", e.Provider, e.Type.String(), e.Message, e.StatusCode)
}

// Is matches on Type so errors.Is works against sentinel values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsRetryable reports whether the call is worth repeating.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// DomainKind maps the transport-level type onto the pipeline error
// taxonomy. Invalid requests and unknowns both land on KindInternal:
// neither is actionable by the caller.
func (e *Error) DomainKind() domain.ErrorKind {
	switch e.Type {
	case ErrTypeAuthentication:
		return domain.KindAIAuthentication
	case ErrTypeRateLimit:
		return domain.KindAIRateLimited
	case ErrTypeOverloaded:
		return domain.KindAIOverloaded
	default:
		return domain.KindInternal
	}
}

// NewAuthenticationError creates a new authentication error.
func NewAuthenticationError(provider, message string) *Error {
	return &Error{
		Type:       ErrTypeAuthentication,
		Message:    message,
		StatusCode: 401,
		Retryable:  false,
		Provider:   provider,
	}
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(provider, message string) *Error {
	return &Error{
		Type:       ErrTypeRateLimit,
		Message:    message,
		StatusCode: 429,
		Retryable:  true,
		Provider:   provider,
	}
}

// NewOverloadedError creates a new overloaded/unavailable error.
func NewOverloadedError(provider, message string, statusCode int) *Error {
	return &Error{
		Type:       ErrTypeOverloaded,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  true,
		Provider:   provider,
	}
}

// NewInvalidRequestError creates a new invalid request error.
func NewInvalidRequestError(provider, message string) *Error {
	return &Error{
		Type:       ErrTypeInvalidRequest,
		Message:    message,
		StatusCode: 400,
		Retryable:  false,
		Provider:   provider,
	}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(provider, message string) *Error {
	return &Error{
		Type:      ErrTypeTimeout,
		Message:   message,
		Retryable: true,
		Provider:  provider,
	}
}
