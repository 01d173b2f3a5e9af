package impact

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Feature binds a named feature to the glob patterns that identify it.
type Feature struct {
	Name            string
	Description     string
	Paths           []string
	RelatedFeatures []string
}

// PatternGroup binds a named service or page to its glob patterns.
type PatternGroup struct {
	Name     string
	Patterns []string
}

// MapConfig is the resolved impact map for one repository. Features,
// services and pages keep the order they were declared in; match output
// follows that encounter order so summaries stay deterministic.
type MapConfig struct {
	Features       []Feature
	Services       []PatternGroup
	Pages          []PatternGroup
	IgnorePatterns []string
}

// Feature returns the configured feature with the given name.
func (c MapConfig) Feature(name string) (Feature, bool) {
	for _, f := range c.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// Empty reports whether the config maps nothing at all.
func (c MapConfig) Empty() bool {
	return len(c.Features) == 0 && len(c.Services) == 0 && len(c.Pages) == 0
}

// featureBody is the YAML value under a feature key.
type featureBody struct {
	Description     string   `yaml:"description"`
	Paths           []string `yaml:"paths"`
	RelatedFeatures []string `yaml:"relatedFeatures"`
}

// ParseMapConfig parses an impact map document. Top-level shape:
//
//	features:
//	  billing:
//	    description: Billing and payments
//	    paths: ["lib/core/billing.ts"]
//	    relatedFeatures: [invoicing]
//	services:
//	  billing: ["app/api/billing/**"]
//	pages:
//	  checkout: ["app/checkout/**"]
//	ignorePatterns: ["**/*.test.ts"]
//
// Mapping key order is preserved, which plain map unmarshalling would
// lose, so the document is walked through the yaml node tree.
func ParseMapConfig(raw []byte) (MapConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return MapConfig{}, fmt.Errorf("parse impact map: %w", err)
	}

	cfg := MapConfig{}
	if len(doc.Content) == 0 {
		return cfg, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return MapConfig{}, fmt.Errorf("parse impact map: top level must be a mapping")
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		value := root.Content[i+1]

		var err error
		switch key {
		case "features":
			cfg.Features, err = parseFeatures(value)
		case "services":
			cfg.Services, err = parsePatternGroups(value, "services")
		case "pages":
			cfg.Pages, err = parsePatternGroups(value, "pages")
		case "ignorePatterns":
			err = value.Decode(&cfg.IgnorePatterns)
		}
		if err != nil {
			return MapConfig{}, err
		}
	}

	return cfg, nil
}

func parseFeatures(node *yaml.Node) ([]Feature, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse impact map: features must be a mapping")
	}

	features := make([]Feature, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var body featureBody
		if err := node.Content[i+1].Decode(&body); err != nil {
			return nil, fmt.Errorf("parse impact map: feature %q: %w", name, err)
		}
		features = append(features, Feature{
			Name:            name,
			Description:     body.Description,
			Paths:           body.Paths,
			RelatedFeatures: body.RelatedFeatures,
		})
	}
	return features, nil
}

func parsePatternGroups(node *yaml.Node, section string) ([]PatternGroup, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse impact map: %s must be a mapping", section)
	}

	groups := make([]PatternGroup, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var patterns []string
		if err := node.Content[i+1].Decode(&patterns); err != nil {
			return nil, fmt.Errorf("parse impact map: %s %q: %w", section, name, err)
		}
		groups = append(groups, PatternGroup{Name: name, Patterns: patterns})
	}
	return groups, nil
}
