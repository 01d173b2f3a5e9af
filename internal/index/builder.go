package index

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cwhitney/diffscope/internal/domain"
)

// Source is the read access the indexer needs from source control. An
// empty ref means the repository's default branch.
type Source interface {
	DefaultBranchHead(ctx context.Context) (string, error)
	Tree(ctx context.Context, ref string) ([]string, error)
	FileContent(ctx context.Context, path, ref string) ([]byte, error)
}

// Options bound the cost of an index build.
type Options struct {
	MaxModules  int // files given a ModuleInfo entry
	BatchSize   int // concurrent fetches per batch
	MaxFileSize int // bytes; larger files are skipped
}

// DefaultOptions are the standard index build bounds.
func DefaultOptions() Options {
	return Options{
		MaxModules:  30,
		BatchSize:   10,
		MaxFileSize: 1 << 20,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxModules <= 0 {
		o.MaxModules = def.MaxModules
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = def.MaxFileSize
	}
	return o
}

// Builder produces codebase indexes. Builds are always wholesale; there
// is no incremental update path.
type Builder struct {
	src  Source
	opts Options
	now  func() time.Time
}

// NewBuilder constructs a Builder over the given source.
func NewBuilder(src Source, opts Options) *Builder {
	return &Builder{
		src:  src,
		opts: opts.withDefaults(),
		now:  time.Now,
	}
}

// Build indexes the repository at its current default-branch head. The
// build fails only when the head or tree lookup fails; individual file
// fetch or parse problems just leave that file out of the module list.
func (b *Builder) Build(ctx context.Context, repoFullName string) (domain.CodebaseIndex, error) {
	head, err := b.src.DefaultBranchHead(ctx)
	if err != nil {
		return domain.CodebaseIndex{}, domain.NewPipelineError("index-build", domain.KindOf(err), "resolve default branch head", err)
	}

	tree, err := b.src.Tree(ctx, head)
	if err != nil {
		return domain.CodebaseIndex{}, domain.NewPipelineError("index-build", domain.KindOf(err), "list repository tree", err)
	}

	candidates := rankCandidates(filterTree(tree), b.opts.MaxModules)
	modules := b.fetchModules(ctx, head, candidates)

	return domain.CodebaseIndex{
		RepoFullName: repoFullName,
		CommitSHA:    head,
		CreatedAt:    b.now().UTC(),
		Tree:         tree,
		Modules:      modules,
	}, nil
}

// pathDenylist excludes generated, vendored and test files by substring.
var pathDenylist = []string{
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	".min.",
	".d.ts",
	".test.",
	".spec.",
	".stories.",
	"_test.go",
	"__tests__/",
	"__snapshots__/",
	"__pycache__/",
}

func filterTree(tree []string) []string {
	var kept []string
	for _, p := range tree {
		if !hasKnownExtension(p) || deniedPath(p) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func hasKnownExtension(p string) bool {
	for _, ext := range knownExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

func deniedPath(p string) bool {
	for _, fragment := range pathDenylist {
		if strings.Contains(p, fragment) {
			return true
		}
	}
	return false
}

// priorityRules rank paths by prefix. Config and core library code is
// indexed ahead of generic application directories; everything else gets
// the base score and competes on tree order.
var priorityRules = []struct {
	prefix string
	score  int
}{
	{"lib/core/", 100},
	{"src/lib/", 90},
	{"src/core/", 90},
	{"lib/", 80},
	{"packages/", 70},
	{"internal/", 70},
	{"server/", 60},
	{"api/", 60},
	{"src/", 40},
	{"app/", 30},
	{"pages/", 30},
	{"components/", 20},
}

const rootConfigScore = 85

func priorityScore(p string) int {
	if !strings.Contains(p, "/") && strings.Contains(p, "config") {
		return rootConfigScore
	}
	for _, rule := range priorityRules {
		if strings.HasPrefix(p, rule.prefix) {
			return rule.score
		}
	}
	return 10
}

// rankCandidates orders by priority score and truncates to the module
// cap. The sort is stable so equally ranked files keep tree order.
func rankCandidates(paths []string, limit int) []string {
	ranked := make([]string, len(paths))
	copy(ranked, paths)
	sort.SliceStable(ranked, func(i, j int) bool {
		return priorityScore(ranked[i]) > priorityScore(ranked[j])
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// fetchModules pulls file contents in fixed-size batches. Each batch is
// awaited in full before the next starts, and a failed or oversized fetch
// only drops that one file.
func (b *Builder) fetchModules(ctx context.Context, ref string, paths []string) []domain.ModuleInfo {
	modules := make([]domain.ModuleInfo, 0, len(paths))

	for start := 0; start < len(paths); start += b.opts.BatchSize {
		end := start + b.opts.BatchSize
		if end > len(paths) {
			end = len(paths)
		}
		batch := paths[start:end]
		results := make([]*domain.ModuleInfo, len(batch))

		var wg sync.WaitGroup
		for i, p := range batch {
			wg.Add(1)
			go func(i int, p string) {
				defer wg.Done()
				content, err := b.src.FileContent(ctx, p, ref)
				if err != nil || len(content) > b.opts.MaxFileSize {
					return
				}
				info := Extract(p, content)
				results[i] = &info
			}(i, p)
		}
		wg.Wait()

		for _, info := range results {
			if info != nil {
				modules = append(modules, *info)
			}
		}
	}

	return modules
}
