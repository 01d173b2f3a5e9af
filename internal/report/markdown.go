package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cwhitney/diffscope/internal/domain"
)

// Marker is embedded in every rendered report so a posting collaborator
// can find and replace a prior comment.
const Marker = "<!-- diffscope:analysis-report -->"

// RenderMarkdown serializes a report for posting. Rendering is
// deterministic: list order follows the report's own ordering.
func RenderMarkdown(r domain.AnalysisReport) string {
	var b strings.Builder
	caser := cases.Title(language.English)

	b.WriteString(Marker + "\n")
	b.WriteString("# Change Impact Analysis\n\n")

	b.WriteString(fmt.Sprintf("- Repository: %s\n", r.Repository))
	b.WriteString(fmt.Sprintf("- Target: %s\n", r.Target))
	if r.Title != "" {
		b.WriteString(fmt.Sprintf("- Title: %s\n", r.Title))
	}
	if r.HeadSHA != "" {
		b.WriteString(fmt.Sprintf("- Head: %s\n", shortSHA(r.HeadSHA)))
	}
	if r.ConfigSource != "" {
		b.WriteString(fmt.Sprintf("- Impact map: %s\n", r.ConfigSource))
	}
	b.WriteString(fmt.Sprintf("- Generated: %s\n\n", r.GeneratedAt.UTC().Format(time.RFC3339)))

	b.WriteString(fmt.Sprintf("**Risk: %s** — %d files changed, +%d/-%d, %d features affected\n\n",
		caser.String(string(r.Impact.RiskLevel)),
		r.Stats.FilesChanged, r.Stats.Additions, r.Stats.Deletions, r.Stats.FeaturesAffected))

	b.WriteString("## Impact\n\n")
	b.WriteString(r.Impact.Summary)
	b.WriteString("\n")
	if len(r.Impact.Features) > 0 {
		b.WriteString("\n")
		for _, f := range r.Impact.Features {
			if f.ChangeType == domain.ImpactDirect {
				b.WriteString(fmt.Sprintf("- **%s** (direct): %s\n", f.Name, strings.Join(f.AffectedFiles, ", ")))
			} else {
				b.WriteString(fmt.Sprintf("- **%s** (indirect): %s\n", f.Name, f.Description))
			}
		}
	}
	b.WriteString("\n")

	renderScenarios(&b, caser, r.TestScenarios)
	renderReview(&b, caser, r.CodeReview)

	return b.String()
}

func renderScenarios(b *strings.Builder, caser cases.Caser, scenarios []domain.TestScenario) {
	b.WriteString("## Test Scenarios\n\n")
	if len(scenarios) == 0 {
		b.WriteString("No test scenarios generated.\n\n")
		return
	}

	for _, s := range scenarios {
		b.WriteString(fmt.Sprintf("### %s (%s, %s)\n", s.Title, caser.String(s.Priority), s.Type))
		if s.Feature != "" {
			b.WriteString(fmt.Sprintf("- Feature: %s\n", s.Feature))
		}
		for i, step := range s.Steps {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
		}
		if s.ExpectedResult != "" {
			b.WriteString(fmt.Sprintf("- Expected: %s\n", s.ExpectedResult))
		}
		b.WriteString("\n")
	}
}

func renderReview(b *strings.Builder, caser cases.Caser, items []domain.CodeReviewItem) {
	b.WriteString("## Code Review\n\n")
	if len(items) == 0 {
		b.WriteString("No findings reported.\n")
		return
	}

	for _, item := range items {
		b.WriteString(fmt.Sprintf("### %s (%s)\n", item.Title, caser.String(item.Severity)))
		location := item.File
		if item.Line > 0 {
			location = fmt.Sprintf("%s:%d", item.File, item.Line)
		}
		b.WriteString(fmt.Sprintf("- File: %s\n", location))
		b.WriteString(fmt.Sprintf("- Category: %s\n", item.Category))
		if item.Description != "" {
			b.WriteString(fmt.Sprintf("- Detail: %s\n", item.Description))
		}
		if item.Suggestion != "" {
			b.WriteString(fmt.Sprintf("- Suggestion: %s\n", item.Suggestion))
		}
		b.WriteString("\n")
	}
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
