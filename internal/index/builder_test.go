package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwhitney/diffscope/internal/domain"
)

// fakeSource is an in-memory Source for builder and cache tests.
type fakeSource struct {
	mu        sync.Mutex
	head      string
	headErr   error
	tree      []string
	treeErr   error
	files     map[string]string
	fileErrs  map[string]error
	headCalls int
}

func (f *fakeSource) DefaultBranchHead(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	return f.head, f.headErr
}

func (f *fakeSource) Tree(ctx context.Context, ref string) ([]string, error) {
	return f.tree, f.treeErr
}

func (f *fakeSource) FileContent(ctx context.Context, path, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fileErrs[path]; ok {
		return nil, err
	}
	content, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return []byte(content), nil
}

func TestBuild_FiltersAndExtracts(t *testing.T) {
	src := &fakeSource{
		head: "abc1234def",
		tree: []string{
			"lib/core/billing.ts",
			"src/app.ts",
			"src/app.test.ts",
			"node_modules/react/index.js",
			"dist/bundle.js",
			"logo.png",
			"README.md",
		},
		files: map[string]string{
			"lib/core/billing.ts": "// Billing core.\nexport function charge() {}\n",
			"src/app.ts":          "import { charge } from \"../lib/core/billing\";\n",
		},
	}

	idx, err := NewBuilder(src, Options{}).Build(context.Background(), "acme/shop")
	require.NoError(t, err)

	assert.Equal(t, "acme/shop", idx.RepoFullName)
	assert.Equal(t, "abc1234def", idx.CommitSHA)
	assert.Len(t, idx.Tree, 7, "tree keeps every blob path")

	require.Len(t, idx.Modules, 2)
	assert.Equal(t, "lib/core/billing.ts", idx.Modules[0].Path, "core library ranks first")
	assert.Equal(t, []string{"charge"}, idx.Modules[0].Exports)
	assert.Equal(t, "Billing core.", idx.Modules[0].Summary)
}

func TestBuild_CapsModuleCount(t *testing.T) {
	src := &fakeSource{head: "sha", files: map[string]string{}}
	for i := 0; i < 50; i++ {
		path := fmt.Sprintf("src/mod%02d.ts", i)
		src.tree = append(src.tree, path)
		src.files[path] = "export const x = 1;\n"
	}

	idx, err := NewBuilder(src, Options{MaxModules: 30, BatchSize: 10}).Build(context.Background(), "acme/big")
	require.NoError(t, err)
	assert.Len(t, idx.Modules, 30)
	assert.Len(t, idx.Tree, 50)
}

func TestBuild_SkipsOversizedFiles(t *testing.T) {
	src := &fakeSource{
		head: "sha",
		tree: []string{"src/huge.ts", "src/small.ts"},
		files: map[string]string{
			"src/huge.ts":  strings.Repeat("x", 2048),
			"src/small.ts": "export const ok = true;\n",
		},
	}

	idx, err := NewBuilder(src, Options{MaxFileSize: 1024}).Build(context.Background(), "acme/shop")
	require.NoError(t, err)
	require.Len(t, idx.Modules, 1)
	assert.Equal(t, "src/small.ts", idx.Modules[0].Path)
}

// A failed fetch drops that file without failing the batch.
func TestBuild_ToleratesFetchFailures(t *testing.T) {
	src := &fakeSource{
		head: "sha",
		tree: []string{"src/a.ts", "src/b.ts", "src/c.ts"},
		files: map[string]string{
			"src/a.ts": "export const a = 1;\n",
			"src/c.ts": "export const c = 3;\n",
		},
		fileErrs: map[string]error{"src/b.ts": errors.New("503")},
	}

	idx, err := NewBuilder(src, Options{}).Build(context.Background(), "acme/shop")
	require.NoError(t, err)
	require.Len(t, idx.Modules, 2)
	assert.Equal(t, "src/a.ts", idx.Modules[0].Path)
	assert.Equal(t, "src/c.ts", idx.Modules[1].Path)
}

func TestBuild_FailsWhenTreeLookupFails(t *testing.T) {
	src := &fakeSource{head: "sha", treeErr: errors.New("boom")}

	_, err := NewBuilder(src, Options{}).Build(context.Background(), "acme/shop")
	require.Error(t, err)

	var pe *domain.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "index-build", pe.Step)
}

func TestBuild_FailsWhenHeadLookupFails(t *testing.T) {
	src := &fakeSource{headErr: domain.NewPipelineError("scm", domain.KindSCMUnauthorized, "bad token", nil)}

	_, err := NewBuilder(src, Options{}).Build(context.Background(), "acme/shop")
	assert.True(t, domain.IsKind(err, domain.KindSCMUnauthorized), "source classification is preserved")
}

func TestPriorityScore(t *testing.T) {
	assert.Greater(t, priorityScore("lib/core/billing.ts"), priorityScore("src/app.ts"))
	assert.Greater(t, priorityScore("next.config.js"), priorityScore("app/page.tsx"))
	assert.Greater(t, priorityScore("src/app.ts"), priorityScore("notes/scratch.ts"))
}
