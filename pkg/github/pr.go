package github

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// PullRequest represents a pull request as returned by gh --json queries.
type PullRequest struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	State       string    `json:"state"`
	HeadRefName string    `json:"headRefName"`
	HeadRefOid  string    `json:"headRefOid"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Author      Author    `json:"author"`
}

// PullRequestFile is one changed file from the pulls files API.
type PullRequestFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

// PRCreateOptions holds options for creating a pull request.
type PRCreateOptions struct {
	Title string
	Body  string
	Head  string
	Base  string
}

const prListFields = "number,title,body,url,state,headRefName,headRefOid,updatedAt,author"

// GetPR fetches a single pull request.
func (c *CLIClient) GetPR(ctx context.Context, number int) (*PullRequest, error) {
	var pr PullRequest
	err := c.runJSON(ctx, &pr, "pr", "view", strconv.Itoa(number),
		"--repo", c.RepoPath(), "--json", prListFields)
	if err != nil {
		return nil, fmt.Errorf("failed to get PR #%d: %w", number, err)
	}
	return &pr, nil
}

// ListOpenPRs lists open pull requests.
func (c *CLIClient) ListOpenPRs(ctx context.Context) ([]PullRequest, error) {
	var prs []PullRequest
	err := c.runJSON(ctx, &prs, "pr", "list",
		"--repo", c.RepoPath(), "--state", "open",
		"--limit", "100", "--json", prListFields)
	if err != nil {
		return nil, fmt.Errorf("failed to list open PRs: %w", err)
	}
	return prs, nil
}

// ListPRComments returns the PR conversation comments in creation order.
// PR conversation comments live on the issues endpoint.
func (c *CLIClient) ListPRComments(ctx context.Context, number int) ([]IssueComment, error) {
	return c.ListIssueComments(ctx, number)
}

// CommentOnPR posts a conversation comment on a pull request.
func (c *CLIClient) CommentOnPR(ctx context.Context, number int, body string) error {
	_, err := c.run(ctx, "pr", "comment", strconv.Itoa(number),
		"--repo", c.RepoPath(), "--body", body)
	if err != nil {
		return fmt.Errorf("failed to comment on PR #%d: %w", number, err)
	}
	return nil
}

// CreatePR creates a pull request and returns it with number and URL
// populated.
func (c *CLIClient) CreatePR(ctx context.Context, opts PRCreateOptions) (*PullRequest, error) {
	base := opts.Base
	if base == "" {
		var err error
		base, err = c.DefaultBranch(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve base branch: %w", err)
		}
	}

	_, err := c.run(ctx, "pr", "create",
		"--repo", c.RepoPath(),
		"--title", opts.Title,
		"--body", opts.Body,
		"--head", opts.Head,
		"--base", base)
	if err != nil {
		return nil, fmt.Errorf("failed to create PR for branch %s: %w", opts.Head, err)
	}

	// gh pr create prints the URL; re-query by head ref for structured data.
	var pr PullRequest
	err = c.runJSON(ctx, &pr, "pr", "view", opts.Head,
		"--repo", c.RepoPath(), "--json", prListFields)
	if err != nil {
		return nil, fmt.Errorf("PR created but lookup failed for branch %s: %w", opts.Head, err)
	}
	return &pr, nil
}

// CreateReview submits a formal PR review, either approving or requesting
// changes.
func (c *CLIClient) CreateReview(ctx context.Context, number int, approve bool, body string) error {
	action := "--request-changes"
	if approve {
		action = "--approve"
	}
	_, err := c.run(ctx, "pr", "review", strconv.Itoa(number),
		"--repo", c.RepoPath(), action, "--body", body)
	if err != nil {
		return fmt.Errorf("failed to review PR #%d: %w", number, err)
	}
	return nil
}

// GetPRFiles returns the changed files with patches for a pull request.
func (c *CLIClient) GetPRFiles(ctx context.Context, number int) ([]PullRequestFile, error) {
	var files []PullRequestFile
	endpoint := fmt.Sprintf("repos/%s/pulls/%d/files?per_page=100", c.RepoPath(), number)
	err := c.runJSON(ctx, &files, "api", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get files for PR #%d: %w", number, err)
	}
	return files, nil
}
