// Package llm defines the AI provider contract and validates the
// structured responses coming back from the vendor APIs.
package llm

import (
	"context"

	"github.com/cwhitney/diffscope/internal/domain"
)

// Provider generates test scenarios and review findings from prepared
// prompts. Implementations live in the vendor subpackages.
type Provider interface {
	// Name identifies the provider in logs and errors, e.g. "anthropic".
	Name() string

	// GenerateTestScenarios sends the prompt and returns at most
	// maxScenarios validated scenarios.
	GenerateTestScenarios(ctx context.Context, prompt string, maxScenarios int) ([]domain.TestScenario, error)

	// GenerateCodeReview sends the prompt and returns at most maxItems
	// validated findings.
	GenerateCodeReview(ctx context.Context, prompt string, maxItems int) ([]domain.CodeReviewItem, error)
}
