package http

import (
	"regexp"
	"strings"
)

var (
	jsonFenceRegex = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	anyFenceRegex  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
)

// ExtractJSON recovers a JSON document from a model response that may
// wrap it in markdown. Recovery order: a ```json fence, then any fence,
// then the substring from the first { to the last }. Returns the
// trimmed input when none of those apply, letting the caller's
// json.Unmarshal produce the real error.
func ExtractJSON(text string) string {
	if m := jsonFenceRegex.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if m := anyFenceRegex.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}

	return strings.TrimSpace(text)
}
