package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwhitney/diffscope/internal/domain"
)

type fakeCache struct {
	idx     domain.CodebaseIndex
	ok      bool
	getErr  error
	putErr  error
	puts    int
	lastPut domain.CodebaseIndex
}

func (f *fakeCache) GetIndex(ctx context.Context, user, repo string) (domain.CodebaseIndex, bool, error) {
	return f.idx, f.ok, f.getErr
}

func (f *fakeCache) PutIndex(ctx context.Context, user, repo string, idx domain.CodebaseIndex) error {
	f.puts++
	f.lastPut = idx
	return f.putErr
}

type recordingLogger struct {
	warnings []string
}

func (r *recordingLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	r.warnings = append(r.warnings, message)
}

func freshSource() *fakeSource {
	return &fakeSource{
		head:  "head-2",
		tree:  []string{"src/app.ts"},
		files: map[string]string{"src/app.ts": "export const x = 1;\n"},
	}
}

func TestCachedProvider_FreshHit(t *testing.T) {
	src := freshSource()
	cache := &fakeCache{idx: domain.CodebaseIndex{CommitSHA: "head-2"}, ok: true}
	provider := NewCachedProvider(NewBuilder(src, Options{}), cache, src, nil)

	idx, err := provider.Get(context.Background(), "user1", "acme/shop")
	require.NoError(t, err)
	assert.Equal(t, "head-2", idx.CommitSHA)
	assert.Zero(t, cache.puts, "fresh cache entry must not trigger a rebuild")
}

func TestCachedProvider_StaleRebuilds(t *testing.T) {
	src := freshSource()
	cache := &fakeCache{idx: domain.CodebaseIndex{CommitSHA: "head-1"}, ok: true}
	provider := NewCachedProvider(NewBuilder(src, Options{}), cache, src, nil)

	idx, err := provider.Get(context.Background(), "user1", "acme/shop")
	require.NoError(t, err)
	assert.Equal(t, "head-2", idx.CommitSHA)
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, "head-2", cache.lastPut.CommitSHA, "rebuild overwrites the cached index wholesale")
}

// A failing freshness check serves the stale index instead of failing.
func TestCachedProvider_FreshnessCheckFailureFallsBackToStale(t *testing.T) {
	src := freshSource()
	src.headErr = errors.New("network down")
	cache := &fakeCache{idx: domain.CodebaseIndex{CommitSHA: "head-1"}, ok: true}
	logger := &recordingLogger{}
	provider := NewCachedProvider(NewBuilder(src, Options{}), cache, src, logger)

	idx, err := provider.Get(context.Background(), "user1", "acme/shop")
	require.NoError(t, err)
	assert.Equal(t, "head-1", idx.CommitSHA)
	assert.NotEmpty(t, logger.warnings)
}

func TestCachedProvider_MissBuildsAndPersists(t *testing.T) {
	src := freshSource()
	cache := &fakeCache{}
	provider := NewCachedProvider(NewBuilder(src, Options{}), cache, src, nil)

	idx, err := provider.Get(context.Background(), "user1", "acme/shop")
	require.NoError(t, err)
	assert.Equal(t, "head-2", idx.CommitSHA)
	assert.Equal(t, 1, cache.puts)
}

func TestCachedProvider_PutFailureIsNotFatal(t *testing.T) {
	src := freshSource()
	cache := &fakeCache{putErr: errors.New("disk full")}
	logger := &recordingLogger{}
	provider := NewCachedProvider(NewBuilder(src, Options{}), cache, src, logger)

	idx, err := provider.Get(context.Background(), "user1", "acme/shop")
	require.NoError(t, err)
	assert.Equal(t, "head-2", idx.CommitSHA)
	assert.NotEmpty(t, logger.warnings)
}

func TestCachedProvider_NoCacheAlwaysBuilds(t *testing.T) {
	src := freshSource()
	provider := NewCachedProvider(NewBuilder(src, Options{}), nil, src, nil)

	idx, err := provider.Get(context.Background(), "user1", "acme/shop")
	require.NoError(t, err)
	assert.Equal(t, "head-2", idx.CommitSHA)
}
