// Package github implements the source-control contract against the
// GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	llmhttp "github.com/cwhitney/diffscope/internal/adapter/llm/http"
	"github.com/cwhitney/diffscope/internal/adapter/scm"
	"github.com/cwhitney/diffscope/internal/domain"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second
	apiVersion     = "2022-11-28"
	providerName   = "github"

	acceptJSON = "application/vnd.github+json"
	acceptDiff = "application/vnd.github.v3.diff"
	acceptRaw  = "application/vnd.github.raw"
)

// Client reads pull requests and repository contents for one repository.
type Client struct {
	token      string
	owner      string
	repo       string
	baseURL    string
	httpClient *http.Client
	retryConf  llmhttp.RetryConfig
}

// NewClient creates a client scoped to owner/repo. The token should be
// a personal access token or GITHUB_TOKEN from Actions.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		token:      token,
		owner:      owner,
		repo:       repo,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryConf: llmhttp.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     32 * time.Second,
			Multiplier:     2.0,
		},
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// SetTimeout sets the HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetRetryConfig overrides the default retry policy.
func (c *Client) SetRetryConfig(config llmhttp.RetryConfig) {
	c.retryConf = config
}

// RepoFullName returns "owner/repo".
func (c *Client) RepoFullName() string {
	return c.owner + "/" + c.repo
}

// PullRequestDiff implements scm.Reader.
func (c *Client) PullRequestDiff(ctx context.Context, number int) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, c.owner, c.repo, number)
	body, err := c.get(ctx, u, acceptDiff)
	if err != nil {
		return "", wrapError("fetch-diff", fmt.Sprintf("pull request #%d diff", number), err)
	}
	return string(body), nil
}

// PullRequest implements scm.Reader.
func (c *Client) PullRequest(ctx context.Context, number int) (scm.PullRequest, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, c.owner, c.repo, number)
	body, err := c.get(ctx, u, acceptJSON)
	if err != nil {
		return scm.PullRequest{}, wrapError("fetch-pr", fmt.Sprintf("pull request #%d", number), err)
	}

	var resp pullRequestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return scm.PullRequest{}, wrapError("fetch-pr", "decode pull request", err)
	}
	return scm.PullRequest{
		Number:  resp.Number,
		Title:   resp.Title,
		HeadSHA: resp.Head.SHA,
		BaseRef: resp.Base.Ref,
		HeadRef: resp.Head.Ref,
	}, nil
}

// CompareDiff implements scm.Reader.
func (c *Client) CompareDiff(ctx context.Context, base, head string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/compare/%s...%s",
		c.baseURL, c.owner, c.repo, url.PathEscape(base), url.PathEscape(head))
	body, err := c.get(ctx, u, acceptDiff)
	if err != nil {
		return "", wrapError("fetch-diff", fmt.Sprintf("compare %s...%s", base, head), err)
	}
	return string(body), nil
}

// DefaultBranchHead implements scm.Reader.
func (c *Client) DefaultBranchHead(ctx context.Context) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, c.owner, c.repo)
	body, err := c.get(ctx, u, acceptJSON)
	if err != nil {
		return "", wrapError("index-source", "fetch repository", err)
	}

	var repo repoResponse
	if err := json.Unmarshal(body, &repo); err != nil {
		return "", wrapError("index-source", "decode repository", err)
	}
	if repo.DefaultBranch == "" {
		return "", wrapError("index-source", "repository has no default branch", nil)
	}

	u = fmt.Sprintf("%s/repos/%s/%s/commits/%s",
		c.baseURL, c.owner, c.repo, url.PathEscape(repo.DefaultBranch))
	body, err = c.get(ctx, u, acceptJSON)
	if err != nil {
		return "", wrapError("index-source", "resolve default branch head", err)
	}

	var commit commitResponse
	if err := json.Unmarshal(body, &commit); err != nil {
		return "", wrapError("index-source", "decode commit", err)
	}
	return commit.SHA, nil
}

// Tree implements scm.Reader. Only blobs are returned.
func (c *Client) Tree(ctx context.Context, ref string) ([]string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		c.baseURL, c.owner, c.repo, url.PathEscape(ref))
	body, err := c.get(ctx, u, acceptJSON)
	if err != nil {
		return nil, wrapError("index-source", "fetch tree", err)
	}

	var tree treeResponse
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, wrapError("index-source", "decode tree", err)
	}

	paths := make([]string, 0, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			paths = append(paths, entry.Path)
		}
	}
	return paths, nil
}

// FileContent implements scm.Reader.
func (c *Client) FileContent(ctx context.Context, path, ref string) ([]byte, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.baseURL, c.owner, c.repo, escapePath(path), url.QueryEscape(ref))
	body, err := c.get(ctx, u, acceptRaw)
	if err != nil {
		return nil, wrapError("index-source", "fetch "+path, err)
	}
	return body, nil
}

// get performs one GET with retry, returning the body on 2xx and a
// typed error otherwise.
func (c *Client) get(ctx context.Context, u, accept string) ([]byte, error) {
	var body []byte
	err := llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if reqErr != nil {
			return &llmhttp.Error{
				Type:     llmhttp.ErrTypeUnknown,
				Message:  reqErr.Error(),
				Provider: providerName,
			}
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", apiVersion)

		resp, callErr := c.httpClient.Do(req)
		if callErr != nil {
			return llmhttp.NewTimeoutError(providerName, callErr.Error())
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return llmhttp.NewTimeoutError(providerName, readErr.Error())
		}
		if resp.StatusCode >= 400 {
			return mapHTTPError(resp.StatusCode, respBody, resp.Header)
		}

		body = respBody
		return nil
	}, c.retryConf)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// mapHTTPError maps GitHub status codes onto the shared typed error so
// the retry machinery can reuse its decisions. A 403 with an exhausted
// rate-limit header is a rate limit, not an authorization failure.
func mapHTTPError(statusCode int, body []byte, header http.Header) *llmhttp.Error {
	message := parseErrorMessage(statusCode, body)

	if statusCode == http.StatusForbidden && header.Get("X-RateLimit-Remaining") == "0" {
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeRateLimit,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   providerName,
		}
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeAuthentication,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	case http.StatusTooManyRequests:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeRateLimit,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   providerName,
		}
	case http.StatusNotFound, http.StatusUnprocessableEntity:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeInvalidRequest,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeOverloaded,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Provider:   providerName,
		}
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	}
}

// parseErrorMessage extracts a user-friendly message from GitHub's
// error body, falling back to a body preview for non-JSON responses.
func parseErrorMessage(statusCode int, body []byte) string {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		preview := string(body)
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		if preview == "" {
			return fmt.Sprintf("HTTP %d", statusCode)
		}
		return fmt.Sprintf("HTTP %d: %s", statusCode, preview)
	}
	return errResp.Message
}

// wrapError classifies a transport error into the pipeline taxonomy.
func wrapError(step, message string, err error) error {
	kind := domain.KindInternal

	var httpErr *llmhttp.Error
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusNotFound:
			kind = domain.KindSCMNotFound
		case httpErr.Type == llmhttp.ErrTypeAuthentication:
			kind = domain.KindSCMUnauthorized
		case httpErr.Type == llmhttp.ErrTypeRateLimit:
			kind = domain.KindSCMRateLimited
		}
	}

	return domain.NewPipelineError(step, kind, message, err)
}
