package index

import (
	"context"

	"github.com/cwhitney/diffscope/internal/domain"
)

// Cache persists indexes keyed by (user, repository).
type Cache interface {
	GetIndex(ctx context.Context, user, repo string) (domain.CodebaseIndex, bool, error)
	PutIndex(ctx context.Context, user, repo string, idx domain.CodebaseIndex) error
}

// WarnLogger is the narrow logging port the cached provider needs.
type WarnLogger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// CachedProvider serves indexes from the cache, rebuilding when the
// default branch has moved on. Concurrent requests for the same key may
// both rebuild; the cache write is last-write-wins, which is acceptable
// since a rebuild is idempotent.
type CachedProvider struct {
	builder *Builder
	cache   Cache
	src     Source
	logger  WarnLogger
}

// NewCachedProvider wraps a builder with cache lookups. cache and logger
// may be nil.
func NewCachedProvider(builder *Builder, cache Cache, src Source, logger WarnLogger) *CachedProvider {
	return &CachedProvider{builder: builder, cache: cache, src: src, logger: logger}
}

// Get returns a current index for the repository. A cached index is
// reused while it still matches the default-branch head; if the freshness
// check itself fails the stale index is returned rather than failing the
// caller.
func (p *CachedProvider) Get(ctx context.Context, user, repo string) (domain.CodebaseIndex, error) {
	if p.cache != nil {
		cached, ok, err := p.cache.GetIndex(ctx, user, repo)
		if err != nil {
			p.warn(ctx, "index cache read failed", map[string]interface{}{"repo": repo, "error": err.Error()})
		} else if ok {
			head, err := p.src.DefaultBranchHead(ctx)
			if err != nil {
				p.warn(ctx, "index freshness check failed, serving stale index", map[string]interface{}{"repo": repo, "error": err.Error()})
				return cached, nil
			}
			if !cached.Stale(head) {
				return cached, nil
			}
		}
	}

	idx, err := p.builder.Build(ctx, repo)
	if err != nil {
		return domain.CodebaseIndex{}, err
	}

	if p.cache != nil {
		if err := p.cache.PutIndex(ctx, user, repo, idx); err != nil {
			p.warn(ctx, "index cache write failed", map[string]interface{}{"repo": repo, "error": err.Error()})
		}
	}
	return idx, nil
}

func (p *CachedProvider) warn(ctx context.Context, message string, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.LogWarning(ctx, message, fields)
	}
}
