package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cwhitney/diffscope/internal/domain"
)

// DefaultAliasPrefix is the conventional path alias in TS/JS projects
// mapping "@/x" onto the source root.
const DefaultAliasPrefix = "@/"

const layoutEntryLimit = 10

// Retriever derives a textual codebase context for a set of changed
// files. It performs no I/O; everything comes from the index.
type Retriever struct {
	aliasPrefix string
}

// NewRetriever constructs a Retriever. An empty aliasPrefix uses the
// default "@/" convention.
func NewRetriever(aliasPrefix string) *Retriever {
	if aliasPrefix == "" {
		aliasPrefix = DefaultAliasPrefix
	}
	return &Retriever{aliasPrefix: aliasPrefix}
}

// Context renders the changed modules, their direct dependencies and
// their consumers as prompt-ready text. Sections with nothing to say are
// omitted entirely; with no resolvable modules the result is just the
// repository layout histogram.
func (r *Retriever) Context(idx domain.CodebaseIndex, changedPaths []string) string {
	modules := make(map[string]domain.ModuleInfo, len(idx.Modules))
	for _, m := range idx.Modules {
		modules[m.Path] = m
	}

	changed := r.resolveChanged(modules, changedPaths)
	deps := r.collectDependencies(modules, changed)
	consumers := r.collectConsumers(modules, changed)

	var b strings.Builder
	fmt.Fprintf(&b, "Codebase context for %s at %s\n", idx.RepoFullName, shortSHA(idx.CommitSHA))

	if len(changed) > 0 {
		b.WriteString("\n## Changed modules\n")
		for _, path := range sortedKeys(changed) {
			m := modules[path]
			fmt.Fprintf(&b, "- %s (%s)\n", m.Path, m.Language)
			if m.Summary != "" {
				fmt.Fprintf(&b, "  summary: %s\n", m.Summary)
			}
			if len(m.Exports) > 0 {
				fmt.Fprintf(&b, "  exports: %s\n", strings.Join(m.Exports, ", "))
			}
			if refs := consumers[path]; len(refs) > 0 {
				fmt.Fprintf(&b, "  referenced by: %s\n", strings.Join(refs, ", "))
			}
		}
	}

	if len(deps) > 0 {
		b.WriteString("\n## Dependencies (imported by changed modules)\n")
		for _, path := range deps {
			m := modules[path]
			if len(m.Exports) > 0 {
				fmt.Fprintf(&b, "- %s — exports: %s\n", path, strings.Join(m.Exports, ", "))
			} else {
				fmt.Fprintf(&b, "- %s\n", path)
			}
		}
	}

	depSet := make(map[string]bool, len(deps))
	for _, d := range deps {
		depSet[d] = true
	}
	var extraConsumers []string
	seenConsumer := make(map[string]bool)
	for _, path := range sortedKeys(changed) {
		for _, c := range consumers[path] {
			if depSet[c] || seenConsumer[c] {
				continue
			}
			seenConsumer[c] = true
			extraConsumers = append(extraConsumers, c)
		}
	}
	if len(extraConsumers) > 0 {
		b.WriteString("\n## Consumers (modules importing changed modules)\n")
		for _, c := range extraConsumers {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	if layout := layoutHistogram(idx.Tree); layout != "" {
		b.WriteString("\n## Repository layout\n")
		b.WriteString(layout)
	}

	return b.String()
}

// resolveChanged maps changed paths onto indexed modules. Paths the index
// has no module for are opaque and simply dropped.
func (r *Retriever) resolveChanged(modules map[string]domain.ModuleInfo, changedPaths []string) map[string]bool {
	changed := make(map[string]bool)
	for _, p := range changedPaths {
		if resolved, ok := r.resolve(modules, stripDiffPrefix(p)); ok {
			changed[resolved] = true
		}
	}
	return changed
}

// resolve tries, in order: the exact path, the path with each known
// extension, the path as a directory index, and finally the same ladder
// with the alias prefix stripped.
func (r *Retriever) resolve(modules map[string]domain.ModuleInfo, p string) (string, bool) {
	if _, ok := modules[p]; ok {
		return p, true
	}
	for _, ext := range knownExtensions {
		if _, ok := modules[p+ext]; ok {
			return p + ext, true
		}
	}
	for _, ext := range knownExtensions {
		if _, ok := modules[p+"/index"+ext]; ok {
			return p + "/index" + ext, true
		}
	}
	if strings.HasPrefix(p, r.aliasPrefix) {
		return r.resolve(modules, strings.TrimPrefix(p, r.aliasPrefix))
	}
	return "", false
}

// collectDependencies returns modules that changed files import but that
// are not themselves changed, in first-encounter order.
func (r *Retriever) collectDependencies(modules map[string]domain.ModuleInfo, changed map[string]bool) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, path := range sortedKeys(changed) {
		for _, imp := range modules[path].Imports {
			resolved, ok := r.resolve(modules, imp)
			if !ok || changed[resolved] || seen[resolved] {
				continue
			}
			seen[resolved] = true
			deps = append(deps, resolved)
		}
	}
	return deps
}

// collectConsumers builds the reverse mapping: changed module path to the
// unchanged modules that import it.
func (r *Retriever) collectConsumers(modules map[string]domain.ModuleInfo, changed map[string]bool) map[string][]string {
	consumers := make(map[string][]string)
	for _, path := range sortedKeys(modules) {
		if changed[path] {
			continue
		}
		for _, imp := range modules[path].Imports {
			resolved, ok := r.resolve(modules, imp)
			if !ok || !changed[resolved] {
				continue
			}
			consumers[resolved] = append(consumers[resolved], path)
		}
	}
	return consumers
}

// layoutHistogram counts tree files per top two path segments and keeps
// the most populous entries.
func layoutHistogram(tree []string) string {
	counts := make(map[string]int)
	for _, p := range tree {
		counts[topSegments(p)]++
	}
	if len(counts) == 0 {
		return ""
	}

	type entry struct {
		prefix string
		count  int
	}
	entries := make([]entry, 0, len(counts))
	for prefix, count := range counts {
		entries = append(entries, entry{prefix, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].prefix < entries[j].prefix
	})
	if len(entries) > layoutEntryLimit {
		entries = entries[:layoutEntryLimit]
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %d files\n", e.prefix, e.count)
	}
	return b.String()
}

func topSegments(p string) string {
	parts := strings.Split(p, "/")
	switch len(parts) {
	case 1:
		return "(root)"
	case 2:
		return parts[0]
	default:
		return parts[0] + "/" + parts[1]
	}
}

func stripDiffPrefix(p string) string {
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
