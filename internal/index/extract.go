package index

import (
	"path"
	"regexp"
	"strings"

	"github.com/cwhitney/diffscope/internal/domain"
)

// knownExtensions lists the source files the indexer understands, in the
// order the module resolver tries them.
var knownExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py", ".go"}

var languageByExt = map[string]string{
	".ts":  "typescript",
	".tsx": "typescript",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".py":  "python",
	".go":  "go",
}

var (
	jsImportRe   = regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?(?:[\w*\s{},$]+?\s+from\s+)?['"]([^'"]+)['"]`)
	jsRequireRe  = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	jsReExportRe = regexp.MustCompile(`(?m)^\s*export\s+(?:\*|\{[^}]*\})\s+from\s+['"]([^'"]+)['"]`)

	jsExportDeclRe = regexp.MustCompile(`(?m)^\s*export\s+(?:default\s+)?(?:abstract\s+)?(?:async\s+)?(?:function|class|const|let|var|type|interface|enum)\s+([A-Za-z_$][\w$]*)`)
	jsExportListRe = regexp.MustCompile(`(?m)^\s*export\s*\{([^}]*)\}`)

	pyImportRe = regexp.MustCompile(`(?m)^import\s+([\w.]+)`)
	pyFromRe   = regexp.MustCompile(`(?m)^from\s+([\w.]+)\s+import`)
	pyDeclRe   = regexp.MustCompile(`(?m)^(?:def|class)\s+([A-Za-z]\w*)`)

	goImportSingleRe = regexp.MustCompile(`(?m)^import\s+(?:\w+\s+)?"([^"]+)"`)
	goImportBlockRe  = regexp.MustCompile(`(?s)import\s*\((.*?)\)`)
	goQuotedRe       = regexp.MustCompile(`"([^"]+)"`)
	goDeclRe         = regexp.MustCompile(`(?m)^(?:func\s+(?:\([^)]+\)\s+)?|type\s+|var\s+|const\s+)([A-Z]\w*)`)
)

// Extract builds the ModuleInfo for one fetched source file. Relative
// imports are resolved against the file's directory to repo-root-relative
// paths; package imports are kept verbatim.
func Extract(filePath string, content []byte) domain.ModuleInfo {
	ext := strings.ToLower(path.Ext(filePath))
	text := string(content)

	info := domain.ModuleInfo{
		Path:     filePath,
		Language: languageByExt[ext],
		Imports:  []string{},
		Exports:  []string{},
		Summary:  leadingComment(text, ext),
	}

	switch info.Language {
	case "typescript", "javascript":
		info.Imports = resolveAll(filePath, collectMatches(text, jsImportRe, jsRequireRe, jsReExportRe))
		info.Exports = jsExports(text)
	case "python":
		info.Imports = resolvePython(filePath, collectMatches(text, pyImportRe, pyFromRe))
		info.Exports = collectMatches(text, pyDeclRe)
	case "go":
		info.Imports = goImports(text)
		info.Exports = collectMatches(text, goDeclRe)
	}

	return info
}

// leadingComment returns the first comment line at the top of the file.
func leadingComment(text, ext string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "#!"):
			continue
		case strings.HasPrefix(trimmed, "//"):
			return strings.TrimSpace(strings.TrimLeft(trimmed, "/"))
		case strings.HasPrefix(trimmed, "/*"):
			body := strings.TrimSpace(strings.TrimSuffix(strings.TrimLeft(trimmed, "/*"), "*/"))
			if body != "" {
				return body
			}
			// JSDoc style: the text sits on the next starred line.
			for _, next := range lines[i+1:] {
				starred := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(next), "*"))
				if strings.Contains(next, "*/") {
					return ""
				}
				if starred != "" {
					return strings.TrimSpace(strings.TrimSuffix(starred, "*/"))
				}
			}
			return ""
		case ext == ".py" && strings.HasPrefix(trimmed, "#"):
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		case ext == ".py" && (strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''")):
			body := strings.Trim(trimmed, `"'`)
			return strings.TrimSpace(body)
		default:
			return ""
		}
	}
	return ""
}

func collectMatches(text string, patterns ...*regexp.Regexp) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	return out
}

func jsExports(text string) []string {
	exports := collectMatches(text, jsExportDeclRe)
	seen := make(map[string]bool)
	for _, name := range exports {
		seen[name] = true
	}

	for _, m := range jsExportListRe.FindAllStringSubmatch(text, -1) {
		for _, entry := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(entry)
			if name == "" {
				continue
			}
			// "foo as bar" exports bar.
			if idx := strings.Index(name, " as "); idx >= 0 {
				name = strings.TrimSpace(name[idx+4:])
			}
			if name != "" && !seen[name] {
				seen[name] = true
				exports = append(exports, name)
			}
		}
	}
	return exports
}

func goImports(text string) []string {
	imports := collectMatches(text, goImportSingleRe)
	seen := make(map[string]bool)
	for _, imp := range imports {
		seen[imp] = true
	}
	for _, block := range goImportBlockRe.FindAllStringSubmatch(text, 1) {
		for _, m := range goQuotedRe.FindAllStringSubmatch(block[1], -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				imports = append(imports, m[1])
			}
		}
	}
	return imports
}

// resolveAll resolves ./ and ../ specifiers against the importing file's
// directory. Package specifiers pass through untouched.
func resolveAll(filePath string, specs []string) []string {
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		out = append(out, resolveRelative(filePath, spec))
	}
	return out
}

func resolveRelative(filePath, spec string) string {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return spec
	}
	resolved := path.Join(path.Dir(filePath), spec)
	// path.Join cleans ".." segments; anything escaping the repo root is
	// left as-is rather than inventing a path.
	if strings.HasPrefix(resolved, "..") {
		return spec
	}
	return resolved
}

// resolvePython resolves dotted relative imports (".sibling", "..pkg.mod")
// against the file's directory. Absolute module paths pass through.
func resolvePython(filePath string, specs []string) []string {
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		if !strings.HasPrefix(spec, ".") {
			out = append(out, spec)
			continue
		}
		dots := 0
		for dots < len(spec) && spec[dots] == '.' {
			dots++
		}
		base := path.Dir(filePath)
		for i := 1; i < dots; i++ {
			base = path.Dir(base)
		}
		rest := strings.ReplaceAll(spec[dots:], ".", "/")
		resolved := base
		if rest != "" {
			resolved = path.Join(base, rest)
		}
		if strings.HasPrefix(resolved, "..") {
			out = append(out, spec)
			continue
		}
		out = append(out, resolved)
	}
	return out
}
