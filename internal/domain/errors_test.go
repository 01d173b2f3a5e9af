package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_Is(t *testing.T) {
	err := NewPipelineError("fetch-diff", KindSCMNotFound, "pull request 42 not found", nil)

	assert.True(t, errors.Is(err, &PipelineError{Kind: KindSCMNotFound}))
	assert.False(t, errors.Is(err, &PipelineError{Kind: KindSCMUnauthorized}))
}

func TestPipelineError_UnwrapChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewPipelineError("index-build", KindInternal, "tree lookup failed", cause)
	wrapped := fmt.Errorf("analysis: %w", err)

	var pe *PipelineError
	require.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, "index-build", pe.Step)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindAIParse, KindOf(NewPipelineError("ai-generation", KindAIParse, "bad JSON", nil)))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewPipelineError("ai-generation", KindAIRateLimited, "quota", nil))

	assert.True(t, IsKind(err, KindAIRateLimited))
	assert.False(t, IsKind(err, KindAIOverloaded))
	assert.False(t, IsKind(errors.New("plain"), KindAIRateLimited))
}

func TestErrorKind_Retryable(t *testing.T) {
	retryable := []ErrorKind{KindSCMRateLimited, KindAIRateLimited, KindAIOverloaded}
	for _, kind := range retryable {
		assert.True(t, kind.Retryable(), "kind %s", kind)
	}

	terminal := []ErrorKind{KindSCMNotFound, KindSCMUnauthorized, KindAIAuthentication, KindAIParse, KindInternal}
	for _, kind := range terminal {
		assert.False(t, kind.Retryable(), "kind %s", kind)
	}
}
