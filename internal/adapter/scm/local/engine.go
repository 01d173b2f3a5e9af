// Package local implements the source-control contract against a local
// clone via go-git, so analysis works without forge credentials.
package local

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cwhitney/diffscope/internal/adapter/scm"
	"github.com/cwhitney/diffscope/internal/domain"
)

// Engine reads diffs and file contents from a repository on disk.
type Engine struct {
	repoDir string
}

// NewEngine constructs an engine for the provided repository directory.
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

func (e *Engine) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(e.repoDir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, domain.NewPipelineError("fetch-diff", domain.KindSCMNotFound,
				fmt.Sprintf("no git repository at %s", e.repoDir), err)
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

// PullRequestDiff implements scm.Reader. Local repositories have no
// pull requests.
func (e *Engine) PullRequestDiff(ctx context.Context, number int) (string, error) {
	return "", domain.NewPipelineError("fetch-diff", domain.KindSCMNotFound,
		"pull requests are not available for local repositories", nil)
}

// PullRequest implements scm.Reader.
func (e *Engine) PullRequest(ctx context.Context, number int) (scm.PullRequest, error) {
	return scm.PullRequest{}, domain.NewPipelineError("fetch-pr", domain.KindSCMNotFound,
		"pull requests are not available for local repositories", nil)
}

// CompareDiff implements scm.Reader. The diff is base..head, matching
// what a forge would produce for the same ref pair.
func (e *Engine) CompareDiff(ctx context.Context, base, head string) (string, error) {
	repo, err := e.open()
	if err != nil {
		return "", err
	}

	baseCommit, err := resolveCommit(repo, base)
	if err != nil {
		return "", domain.NewPipelineError("fetch-diff", domain.KindSCMNotFound,
			fmt.Sprintf("resolve ref %q", base), err)
	}
	headCommit, err := resolveCommit(repo, head)
	if err != nil {
		return "", domain.NewPipelineError("fetch-diff", domain.KindSCMNotFound,
			fmt.Sprintf("resolve ref %q", head), err)
	}

	patch, err := baseCommit.PatchContext(ctx, headCommit)
	if err != nil {
		return "", fmt.Errorf("compute patch: %w", err)
	}
	return patch.String(), nil
}

// DefaultBranchHead implements scm.Reader. For a local clone the
// checked-out HEAD plays the default-branch role.
func (e *Engine) DefaultBranchHead(ctx context.Context) (string, error) {
	repo, err := e.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// Tree implements scm.Reader.
func (e *Engine) Tree(ctx context.Context, ref string) ([]string, error) {
	repo, err := e.open()
	if err != nil {
		return nil, err
	}
	commit, err := resolveCommit(repo, ref)
	if err != nil {
		return nil, domain.NewPipelineError("index-source", domain.KindSCMNotFound,
			fmt.Sprintf("resolve ref %q", ref), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}

	var paths []string
	err = tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree: %w", err)
	}
	return paths, nil
}

// FileContent implements scm.Reader.
func (e *Engine) FileContent(ctx context.Context, path, ref string) ([]byte, error) {
	repo, err := e.open()
	if err != nil {
		return nil, err
	}
	commit, err := resolveCommit(repo, ref)
	if err != nil {
		return nil, domain.NewPipelineError("index-source", domain.KindSCMNotFound,
			fmt.Sprintf("resolve ref %q", ref), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	file, err := tree.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, domain.NewPipelineError("index-source", domain.KindSCMNotFound,
				fmt.Sprintf("no file %q at %s", path, ref), err)
		}
		return nil, fmt.Errorf("load file: %w", err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return []byte(contents), nil
}

// resolveCommit tries the ref verbatim, then as a local branch, then as
// an origin-remote branch. An empty ref resolves to HEAD.
func resolveCommit(repo *gogit.Repository, ref string) (*object.Commit, error) {
	if ref == "" {
		ref = "HEAD"
	}
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}
