package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure so callers can choose an HTTP
// status and message without string-matching error text.
type ErrorKind string

const (
	// Source-control failures.
	KindSCMNotFound     ErrorKind = "scm-not-found"
	KindSCMUnauthorized ErrorKind = "scm-unauthorized"
	KindSCMRateLimited  ErrorKind = "scm-rate-limited"

	// AI backend failures.
	KindAIAuthentication ErrorKind = "ai-authentication"
	KindAIRateLimited    ErrorKind = "ai-rate-limited"
	KindAIOverloaded     ErrorKind = "ai-overloaded"
	KindAIParse          ErrorKind = "ai-parse"

	// Everything else.
	KindInternal ErrorKind = "internal"
)

// Retryable reports whether a request failing with this kind is worth
// repeating later without operator intervention.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindSCMRateLimited, KindAIRateLimited, KindAIOverloaded:
		return true
	default:
		return false
	}
}

// PipelineError is a classified failure from one pipeline step.
type PipelineError struct {
	Step    string // e.g. "fetch-diff", "ai-generation"
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Step, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Step, e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can compare against sentinel errors.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewPipelineError constructs a classified error for the given step.
func NewPipelineError(step string, kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Step: step, Kind: kind, Message: message, Err: err}
}

// KindOf extracts the error kind from err, or KindInternal if err carries
// no classification.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
