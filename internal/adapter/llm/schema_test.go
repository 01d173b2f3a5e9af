package llm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwhitney/diffscope/internal/domain"
)

const scenariosJSON = `{"scenarios": [
	{"title": "Invoice totals recalculate", "feature": "billing", "priority": "critical", "type": "functional", "steps": ["open invoice", "edit line item"], "expectedResult": "total updates"},
	{"title": "Legacy invoices render", "feature": "billing", "priority": "medium", "type": "regression", "steps": ["open archived invoice"], "expectedResult": "no error"}
]}`

func TestParseTestScenarios(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"raw json", scenariosJSON},
		{"json fence", "```json\n" + scenariosJSON + "\n```"},
		{"bare fence", "```\n" + scenariosJSON + "\n```"},
		{"surrounding prose", "Here are the scenarios:\n\n" + scenariosJSON + "\n\nLet me know if you need more."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenarios, err := ParseTestScenarios("anthropic", tt.raw, 10)
			require.NoError(t, err)
			require.Len(t, scenarios, 2)

			assert.Equal(t, "Invoice totals recalculate", scenarios[0].Title)
			assert.Equal(t, domain.PriorityCritical, scenarios[0].Priority)
			assert.Equal(t, []string{"open invoice", "edit line item"}, scenarios[0].Steps)
			assert.NotEmpty(t, scenarios[0].ID)
			assert.NotEqual(t, scenarios[0].ID, scenarios[1].ID)
		})
	}
}

func TestParseTestScenariosTruncates(t *testing.T) {
	scenarios, err := ParseTestScenarios("anthropic", scenariosJSON, 1)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "Invoice totals recalculate", scenarios[0].Title)
}

func TestParseTestScenariosKeepsProvidedID(t *testing.T) {
	raw := `{"scenarios": [{"id": "s-1", "title": "t", "priority": "low", "type": "edge-case", "steps": ["run"]}]}`
	scenarios, err := ParseTestScenarios("openai", raw, 10)
	require.NoError(t, err)
	assert.Equal(t, "s-1", scenarios[0].ID)
}

func TestParseTestScenariosRejectsInvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I am unable to produce scenarios."},
		{"missing scenarios key", `{"results": []}`},
		{"invalid priority", `{"scenarios": [{"title": "t", "priority": "urgent", "type": "functional", "steps": ["s"]}]}`},
		{"invalid type", `{"scenarios": [{"title": "t", "priority": "high", "type": "smoke", "steps": ["s"]}]}`},
		{"missing title", `{"scenarios": [{"priority": "high", "type": "functional", "steps": ["s"]}]}`},
		{"missing steps", `{"scenarios": [{"title": "t", "feature": "f", "priority": "high", "type": "functional", "expectedResult": "r"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTestScenarios("anthropic", tt.raw, 10)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindAIParse))
		})
	}
}

const reviewJSON = `{"items": [
	{"file": "src/billing/invoice.ts", "line": 42, "severity": "critical", "category": "bug", "title": "Total ignores tax", "description": "computeTotal drops the tax line", "suggestion": "include tax in the sum"},
	{"file": "src/billing/tax.ts", "severity": "suggestion", "category": "style", "title": "Rename rate to taxRate"}
]}`

func TestParseCodeReviewItems(t *testing.T) {
	items, err := ParseCodeReviewItems("openai", "```json\n"+reviewJSON+"\n```", 15)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Total ignores tax", items[0].Title)
	assert.Equal(t, 42, items[0].Line)
	assert.Equal(t, domain.SeverityCritical, items[0].Severity)
	assert.Equal(t, domain.CategoryBug, items[0].Category)
	assert.NotEmpty(t, items[0].ID)
	assert.NotEmpty(t, items[1].ID)
}

func TestParseCodeReviewItemsTruncates(t *testing.T) {
	items, err := ParseCodeReviewItems("openai", reviewJSON, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestParseCodeReviewItemsRejectsInvalidEnums(t *testing.T) {
	tests := []struct {
		field string
		value string
	}{
		{"severity", "urgent"},
		{"category", "logic"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			severity, category := domain.SeverityInfo, domain.CategoryBug
			switch tt.field {
			case "severity":
				severity = tt.value
			case "category":
				category = tt.value
			}
			raw := fmt.Sprintf(`{"items": [{"file": "a.ts", "title": "t", "severity": %q, "category": %q}]}`, severity, category)

			_, err := ParseCodeReviewItems("openai", raw, 10)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindAIParse))
		})
	}
}

func TestParseCodeReviewItemsMissingItemsKey(t *testing.T) {
	_, err := ParseCodeReviewItems("openai", `{"findings": []}`, 10)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAIParse))
}

func TestParseCodeReviewItemsRejectsMissingFile(t *testing.T) {
	raw := `{"items": [{"title": "t", "severity": "info", "category": "bug", "description": "d"}]}`
	_, err := ParseCodeReviewItems("openai", raw, 10)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAIParse))
	assert.Contains(t, err.Error(), "has no file")
}
