package prompt

import (
	"fmt"
	"strings"

	"github.com/cwhitney/diffscope/internal/domain"
)

// ReviewSystemInstruction is the system-role block sent with code-review
// requests.
const ReviewSystemInstruction = "You are an expert code reviewer. You respond only with a single JSON object and never wrap it in markdown fencing."

// universalCriteria apply to every review regardless of language, in
// priority order.
var universalCriteria = []string{
	"Bugs and logic errors: incorrect conditions, off-by-one errors, broken error handling",
	"Security: injection, secrets in code, missing authorization checks, unsafe deserialization",
	"Performance: accidental O(n^2) paths, queries in loops, unbounded memory growth",
	"Design: single responsibility, dependency direction, leaky abstractions",
	"Style and maintainability: naming, dead code, duplication",
}

// BuildCodeReviewPrompt renders the review prompt. Unlike the test
// prompt it embeds the diff verbatim, since findings need line-level
// evidence.
func BuildCodeReviewPrompt(impact domain.ImpactResult, files []domain.ParsedFile, rawDiff, codebaseContext string, maxItems int) string {
	language := DetectLanguage(files)

	var b strings.Builder
	b.WriteString("Review the following change set and report findings.\n\n")

	b.WriteString("## Impact analysis\n")
	b.WriteString(impact.Summary)
	b.WriteString("\n\n")

	if language != "" {
		fmt.Fprintf(&b, "Dominant language: %s\n\n", language)
	}

	b.WriteString("## Review criteria\n")
	for i, criterion := range universalCriteria {
		fmt.Fprintf(&b, "%d. %s\n", i+1, criterion)
	}
	b.WriteString("\n")

	checklistTitle := language
	if checklistTitle == "" {
		checklistTitle = "General"
	}
	fmt.Fprintf(&b, "## %s checklist\n", checklistTitle)
	for _, item := range checklistFor(language) {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	b.WriteString("\n")

	if ctx := strings.TrimSpace(codebaseContext); ctx != "" {
		b.WriteString("## Codebase context\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}

	b.WriteString("## Diff\n```diff\n")
	b.WriteString(strings.TrimRight(rawDiff, "\n"))
	b.WriteString("\n```\n\n")

	b.WriteString("## Instructions\n")
	fmt.Fprintf(&b, "Report at most %d findings, most severe first. Only report issues visible in the diff.\n", maxItems)
	b.WriteString("Respond with a single JSON object, no markdown fencing, in this exact shape:\n")
	b.WriteString(`{"items": [{"file": "...", "line": 0, "severity": "critical|warning|info|suggestion", "category": "bug|security|performance|maintainability|style", "title": "...", "description": "...", "suggestion": "..."}]}`)

	return b.String()
}
