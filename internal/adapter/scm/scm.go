// Package scm defines the source-control contract the analysis
// pipeline depends on. Implementations live in the github and local
// subpackages.
package scm

import "context"

// PullRequest is the metadata the pipeline needs about one PR.
type PullRequest struct {
	Number  int
	Title   string
	HeadSHA string
	BaseRef string
	HeadRef string
}

// Reader provides diffs and repository contents. The last three methods
// double as the indexer's source, so any Reader can back an index build.
type Reader interface {
	// PullRequestDiff returns the unified diff for one PR.
	PullRequestDiff(ctx context.Context, number int) (string, error)

	// PullRequest returns PR metadata.
	PullRequest(ctx context.Context, number int) (PullRequest, error)

	// CompareDiff returns the unified diff between two refs.
	CompareDiff(ctx context.Context, base, head string) (string, error)

	DefaultBranchHead(ctx context.Context) (string, error)
	Tree(ctx context.Context, ref string) ([]string, error)
	FileContent(ctx context.Context, path, ref string) ([]byte, error)
}
