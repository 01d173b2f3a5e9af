package impact

import (
	"context"
)

// Resolution sources, in priority order.
const (
	SourceRepository = "repository"
	SourceOverride   = "override"
	SourceDefault    = "default"
)

// DefaultMapPath is where a repository commits its own impact map.
const DefaultMapPath = ".diffscope/impact-map.yaml"

// FileFetcher reads a file from the target repository at a ref. An empty
// ref means the default branch.
type FileFetcher interface {
	FileContent(ctx context.Context, path, ref string) ([]byte, error)
}

// OverrideStore supplies a stored per-user impact map override.
type OverrideStore interface {
	GetImpactMapOverride(ctx context.Context, user, repo string) ([]byte, bool, error)
}

// Resolver resolves the effective impact map for a repository from, in
// priority order: a file committed in the repository, a stored override,
// or the built-in empty default.
type Resolver struct {
	fetcher   FileFetcher
	overrides OverrideStore
	mapPath   string
}

// NewResolver constructs a Resolver. Either collaborator may be nil, in
// which case its source is skipped.
func NewResolver(fetcher FileFetcher, overrides OverrideStore) *Resolver {
	return &Resolver{
		fetcher:   fetcher,
		overrides: overrides,
		mapPath:   DefaultMapPath,
	}
}

// SetMapPath overrides the committed-file location.
func (r *Resolver) SetMapPath(path string) {
	r.mapPath = path
}

// Resolve returns the effective config and a source label for reporting.
// Fetch or parse failures for one source fall through to the next; the
// built-in default always succeeds.
func (r *Resolver) Resolve(ctx context.Context, user, repo string) (MapConfig, string) {
	if r.fetcher != nil {
		if raw, err := r.fetcher.FileContent(ctx, r.mapPath, ""); err == nil {
			if cfg, err := ParseMapConfig(raw); err == nil {
				return cfg, SourceRepository
			}
		}
	}

	if r.overrides != nil {
		if raw, ok, err := r.overrides.GetImpactMapOverride(ctx, user, repo); err == nil && ok {
			if cfg, err := ParseMapConfig(raw); err == nil {
				return cfg, SourceOverride
			}
		}
	}

	return MapConfig{}, SourceDefault
}
