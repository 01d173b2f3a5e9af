package impact

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cwhitney/diffscope/internal/domain"
)

// Analyzer maps parsed diff files onto configured features, services and
// pages and classifies the overall risk of the change set.
type Analyzer struct {
	cfg MapConfig
}

// NewAnalyzer constructs an Analyzer for the given impact map.
func NewAnalyzer(cfg MapConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze produces the impact result for one change set. An empty config
// is a normal case and yields empty matches with low risk.
func (a *Analyzer) Analyze(files []domain.ParsedFile) domain.ImpactResult {
	surviving := a.filterIgnored(files)

	paths := make([]string, 0, len(surviving))
	totalChanges := 0
	for _, f := range surviving {
		paths = append(paths, normalizePath(f.Path))
		totalChanges += f.Additions + f.Deletions
	}

	features := a.matchFeatures(paths)
	services := matchGroups(a.cfg.Services, paths)
	pages := matchGroups(a.cfg.Pages, paths)

	result := domain.ImpactResult{
		Features:  features,
		Services:  services,
		Pages:     pages,
		RiskLevel: classifyRisk(totalChanges, directCount(features)),
	}
	result.Summary = buildSummary(result)
	return result
}

func (a *Analyzer) filterIgnored(files []domain.ParsedFile) []domain.ParsedFile {
	if len(a.cfg.IgnorePatterns) == 0 {
		return files
	}

	kept := make([]domain.ParsedFile, 0, len(files))
	for _, f := range files {
		if matchAny(a.cfg.IgnorePatterns, normalizePath(f.Path)) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// matchFeatures emits direct impacts in config encounter order, then
// indirect impacts for declared related features that were not matched
// directly themselves.
func (a *Analyzer) matchFeatures(paths []string) []domain.FeatureImpact {
	impacts := []domain.FeatureImpact{}
	seen := make(map[string]bool)

	type related struct {
		name   string
		origin string
	}
	var pending []related

	for _, feature := range a.cfg.Features {
		affected := matchingPaths(feature.Paths, paths)
		if len(affected) == 0 {
			continue
		}
		impacts = append(impacts, domain.FeatureImpact{
			Name:          feature.Name,
			AffectedFiles: affected,
			ChangeType:    domain.ImpactDirect,
			Description:   feature.Description,
		})
		seen[feature.Name] = true
		for _, name := range feature.RelatedFeatures {
			pending = append(pending, related{name: name, origin: feature.Name})
		}
	}

	for _, rel := range pending {
		if seen[rel.name] {
			continue
		}
		description := fmt.Sprintf("Related to the %s feature", rel.origin)
		if cfgFeature, ok := a.cfg.Feature(rel.name); ok && cfgFeature.Description != "" {
			description = cfgFeature.Description
		}
		impacts = append(impacts, domain.FeatureImpact{
			Name:          rel.name,
			AffectedFiles: []string{},
			ChangeType:    domain.ImpactIndirect,
			Description:   description,
		})
		seen[rel.name] = true
	}

	return impacts
}

func matchGroups(groups []PatternGroup, paths []string) []string {
	names := []string{}
	for _, group := range groups {
		if len(matchingPaths(group.Patterns, paths)) > 0 {
			names = append(names, group.Name)
		}
	}
	return names
}

func matchingPaths(patterns, paths []string) []string {
	var matched []string
	for _, p := range paths {
		if matchAny(patterns, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(normalizePath(pattern), p)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// normalizePath converts to forward slashes and drops a leading ./ so
// pattern matching is insensitive to how callers spell paths.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return path.Clean(p)
}

// classifyRisk applies the fixed thresholds, highest tier first. Either
// signal alone is enough to reach a tier.
func classifyRisk(totalChanges, directFeatures int) domain.RiskLevel {
	switch {
	case totalChanges > 500 || directFeatures > 5:
		return domain.RiskCritical
	case totalChanges > 200 || directFeatures > 3:
		return domain.RiskHigh
	case totalChanges > 50 || directFeatures > 1:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func directCount(features []domain.FeatureImpact) int {
	n := 0
	for _, f := range features {
		if f.ChangeType == domain.ImpactDirect {
			n++
		}
	}
	return n
}

func buildSummary(result domain.ImpactResult) string {
	direct := result.DirectFeatureCount()
	indirect := len(result.Features) - direct

	var b strings.Builder
	fmt.Fprintf(&b, "%d feature(s) directly impacted, %d indirectly.", direct, indirect)
	fmt.Fprintf(&b, " Risk level: %s.", result.RiskLevel)
	if len(result.Services) > 0 {
		fmt.Fprintf(&b, " Affected services: %s.", strings.Join(result.Services, ", "))
	}
	if len(result.Pages) > 0 {
		fmt.Fprintf(&b, " Affected pages: %s.", strings.Join(result.Pages, ", "))
	}
	return b.String()
}
