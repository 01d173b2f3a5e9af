package prompt

import (
	"path"
	"strings"

	"github.com/cwhitney/diffscope/internal/domain"
)

var languageNames = map[string]string{
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".cjs":   "JavaScript",
	".py":    "Python",
	".go":    "Go",
	".rb":    "Ruby",
	".java":  "Java",
	".rs":    "Rust",
	".cs":    "C#",
	".php":   "PHP",
	".kt":    "Kotlin",
	".swift": "Swift",
}

// DetectLanguage returns the dominant language of a change set by
// counting file extensions. Ties resolve to the extension seen first so
// the result is deterministic for identical inputs.
func DetectLanguage(files []domain.ParsedFile) string {
	counts := make(map[string]int)
	var order []string
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Path))
		if _, known := languageNames[ext]; !known {
			continue
		}
		if counts[ext] == 0 {
			order = append(order, ext)
		}
		counts[ext]++
	}

	best := ""
	bestCount := 0
	for _, ext := range order {
		if counts[ext] > bestCount {
			best = ext
			bestCount = counts[ext]
		}
	}
	if best == "" {
		return ""
	}
	return languageNames[best]
}

// reviewChecklists hold language-specific best practices embedded in the
// code-review prompt.
var reviewChecklists = map[string][]string{
	"TypeScript": {
		"Prefer explicit types over any; flag unsafe casts",
		"Check for missing await on promises and floating promises",
		"Verify null/undefined handling on optional chains",
		"Watch for stale closures in React hooks and missing dependency entries",
	},
	"JavaScript": {
		"Check for missing await on promises and unhandled rejections",
		"Verify == vs === usage",
		"Watch for prototype pollution and unsafe dynamic property access",
	},
	"Python": {
		"Check for mutable default arguments",
		"Verify exception handling does not swallow errors with bare except",
		"Watch for f-string SQL construction and injection risks",
		"Confirm context managers are used for files and connections",
	},
	"Go": {
		"Verify every error return is checked or explicitly discarded",
		"Watch for goroutine leaks and missing context cancellation",
		"Check for data races on shared state",
		"Confirm deferred Close calls on resources",
	},
}

var genericChecklist = []string{
	"Check input validation at trust boundaries",
	"Verify error paths clean up acquired resources",
	"Watch for hardcoded credentials or secrets",
}

// checklistFor returns the language checklist, falling back to the
// generic list for unrecognized or mixed languages.
func checklistFor(language string) []string {
	if items, ok := reviewChecklists[language]; ok {
		return items
	}
	return genericChecklist
}
