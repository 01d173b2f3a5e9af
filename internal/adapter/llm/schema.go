package llm

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	llmhttp "github.com/cwhitney/diffscope/internal/adapter/llm/http"
	"github.com/cwhitney/diffscope/internal/domain"
)

var validPriorities = map[string]bool{
	domain.PriorityCritical: true,
	domain.PriorityHigh:     true,
	domain.PriorityMedium:   true,
	domain.PriorityLow:      true,
}

var validScenarioTypes = map[string]bool{
	domain.ScenarioFunctional:  true,
	domain.ScenarioRegression:  true,
	domain.ScenarioEdgeCase:    true,
	domain.ScenarioIntegration: true,
}

var validSeverities = map[string]bool{
	domain.SeverityCritical:   true,
	domain.SeverityWarning:    true,
	domain.SeverityInfo:       true,
	domain.SeveritySuggestion: true,
}

var validCategories = map[string]bool{
	domain.CategoryBug:             true,
	domain.CategorySecurity:        true,
	domain.CategoryPerformance:     true,
	domain.CategoryMaintainability: true,
	domain.CategoryStyle:           true,
}

func parseError(provider, message string, err error) error {
	return domain.NewPipelineError("ai-generation", domain.KindAIParse,
		fmt.Sprintf("%s: %s", provider, message), err)
}

// ParseTestScenarios validates a raw model response against the test
// scenario schema. The response may wrap its JSON in markdown fencing.
// Scenarios past maxScenarios are dropped; scenarios without an ID get
// one assigned.
func ParseTestScenarios(provider, raw string, maxScenarios int) ([]domain.TestScenario, error) {
	var payload struct {
		Scenarios []domain.TestScenario `json:"scenarios"`
	}
	if err := json.Unmarshal([]byte(llmhttp.ExtractJSON(raw)), &payload); err != nil {
		return nil, parseError(provider, "response is not valid scenario JSON", err)
	}
	if payload.Scenarios == nil {
		return nil, parseError(provider, `response is missing the "scenarios" array`, nil)
	}

	for i := range payload.Scenarios {
		s := &payload.Scenarios[i]
		if s.Title == "" {
			return nil, parseError(provider, fmt.Sprintf("scenario %d has no title", i), nil)
		}
		if s.Steps == nil {
			return nil, parseError(provider, fmt.Sprintf("scenario %d has no steps", i), nil)
		}
		if !validPriorities[s.Priority] {
			return nil, parseError(provider, fmt.Sprintf("scenario %d has invalid priority %q", i, s.Priority), nil)
		}
		if !validScenarioTypes[s.Type] {
			return nil, parseError(provider, fmt.Sprintf("scenario %d has invalid type %q", i, s.Type), nil)
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
	}

	if maxScenarios > 0 && len(payload.Scenarios) > maxScenarios {
		payload.Scenarios = payload.Scenarios[:maxScenarios]
	}
	return payload.Scenarios, nil
}

// ParseCodeReviewItems validates a raw model response against the review
// finding schema. Semantics mirror ParseTestScenarios.
func ParseCodeReviewItems(provider, raw string, maxItems int) ([]domain.CodeReviewItem, error) {
	var payload struct {
		Items []domain.CodeReviewItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(llmhttp.ExtractJSON(raw)), &payload); err != nil {
		return nil, parseError(provider, "response is not valid review JSON", err)
	}
	if payload.Items == nil {
		return nil, parseError(provider, `response is missing the "items" array`, nil)
	}

	for i := range payload.Items {
		item := &payload.Items[i]
		if item.Title == "" {
			return nil, parseError(provider, fmt.Sprintf("finding %d has no title", i), nil)
		}
		if item.File == "" {
			return nil, parseError(provider, fmt.Sprintf("finding %d has no file", i), nil)
		}
		if !validSeverities[item.Severity] {
			return nil, parseError(provider, fmt.Sprintf("finding %d has invalid severity %q", i, item.Severity), nil)
		}
		if !validCategories[item.Category] {
			return nil, parseError(provider, fmt.Sprintf("finding %d has invalid category %q", i, item.Category), nil)
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
	}

	if maxItems > 0 && len(payload.Items) > maxItems {
		payload.Items = payload.Items[:maxItems]
	}
	return payload.Items, nil
}
