// Package prompt renders the deterministic prompts sent to the AI
// backends. Builders are pure: identical inputs produce identical text.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/cwhitney/diffscope/internal/domain"
)

const testScenarioTemplate = `You are a senior QA engineer. Generate test scenarios for the following change set.

## Impact analysis
{{.Summary}}

{{if .DirectFeatures}}Directly impacted features:
{{range .DirectFeatures}}- {{.Name}}{{if .Description}}: {{.Description}}{{end}} (files: {{join .AffectedFiles ", "}})
{{end}}{{end}}{{if .IndirectFeatures}}Indirectly impacted features:
{{range .IndirectFeatures}}- {{.Name}}{{if .Description}}: {{.Description}}{{end}}
{{end}}{{end}}{{if .Services}}Affected services: {{join .Services ", "}}
{{end}}{{if .Pages}}Affected pages: {{join .Pages ", "}}
{{end}}Risk level: {{.RiskLevel}}

## Changed files
{{range .FileSummaries}}{{.}}
{{end}}
{{if .CodebaseContext}}## Codebase context
{{.CodebaseContext}}

{{end}}## Instructions
Produce at most {{.MaxScenarios}} test scenarios, ordered by priority with the highest risk first.
Cover directly impacted features with functional and regression tests, and indirectly impacted features with integration tests.
Respond with a single JSON object, no markdown fencing, in this exact shape:
{"scenarios": [{"title": "...", "feature": "...", "priority": "critical|high|medium|low", "type": "functional|regression|edge-case|integration", "steps": ["..."], "expectedResult": "..."}]}`

type testScenarioData struct {
	Summary          string
	DirectFeatures   []domain.FeatureImpact
	IndirectFeatures []domain.FeatureImpact
	Services         []string
	Pages            []string
	RiskLevel        domain.RiskLevel
	FileSummaries    []string
	CodebaseContext  string
	MaxScenarios     int
}

var testTmpl = template.Must(template.New("test-scenarios").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(testScenarioTemplate))

// BuildTestScenarioPrompt renders the test-generation prompt from the
// impact result, the per-file diff summary and optional codebase context.
func BuildTestScenarioPrompt(impact domain.ImpactResult, files []domain.ParsedFile, codebaseContext string, maxScenarios int) (string, error) {
	data := testScenarioData{
		Summary:         impact.Summary,
		Services:        impact.Services,
		Pages:           impact.Pages,
		RiskLevel:       impact.RiskLevel,
		FileSummaries:   fileSummaries(files),
		CodebaseContext: strings.TrimSpace(codebaseContext),
		MaxScenarios:    maxScenarios,
	}
	for _, f := range impact.Features {
		if f.ChangeType == domain.ImpactDirect {
			data.DirectFeatures = append(data.DirectFeatures, f)
		} else {
			data.IndirectFeatures = append(data.IndirectFeatures, f)
		}
	}

	var buf bytes.Buffer
	if err := testTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render test scenario prompt: %w", err)
	}
	return buf.String(), nil
}

// fileSummaries renders one line per changed file: status, path, counts.
func fileSummaries(files []domain.ParsedFile) []string {
	summaries := make([]string, 0, len(files))
	for _, f := range files {
		line := fmt.Sprintf("%s %s (+%d/-%d)", f.Status, f.Path, f.Additions, f.Deletions)
		if f.Status == domain.FileStatusRenamed && f.OldPath != "" {
			line = fmt.Sprintf("%s %s -> %s (+%d/-%d)", f.Status, f.OldPath, f.Path, f.Additions, f.Deletions)
		}
		summaries = append(summaries, line)
	}
	return summaries
}
