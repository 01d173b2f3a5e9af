// Package diff turns raw unified-diff text into structured per-file
// change records. Parsing is best effort: a file section that cannot be
// parsed is skipped rather than failing the whole change set.
package diff
