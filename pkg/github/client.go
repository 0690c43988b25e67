// Package github provides GitHub API operations using the gh CLI.
// All coordination state for the agent system lives in GitHub: marker
// comments, iteration labels, and branch names.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"issueagents/pkg/logx"
)

// Client defines the interface for GitHub operations consumed by the
// agents and the watcher. The interface enables testing with mocks.
type Client interface {
	// Issue operations
	GetIssue(ctx context.Context, number int) (*Issue, error)
	ListOpenIssues(ctx context.Context) ([]Issue, error)
	ListIssueComments(ctx context.Context, number int) ([]IssueComment, error)
	CommentOnIssue(ctx context.Context, number int, body string) error
	GetIssueLabels(ctx context.Context, number int) ([]string, error)
	AddIssueLabel(ctx context.Context, number int, label string) error
	RemoveIssueLabel(ctx context.Context, number int, label string) error

	// PR operations
	GetPR(ctx context.Context, number int) (*PullRequest, error)
	ListOpenPRs(ctx context.Context) ([]PullRequest, error)
	ListPRComments(ctx context.Context, number int) ([]IssueComment, error)
	CommentOnPR(ctx context.Context, number int, body string) error
	CreatePR(ctx context.Context, opts PRCreateOptions) (*PullRequest, error)
	CreateReview(ctx context.Context, number int, approve bool, body string) error
	GetPRFiles(ctx context.Context, number int) ([]PullRequestFile, error)

	// Check run operations
	ListCheckRuns(ctx context.Context, ref string) ([]CheckRun, error)
	GetCheckAnnotations(ctx context.Context, checkRunID int64) ([]CheckAnnotation, error)

	// Repository metadata
	RepoPath() string
	CloneURL() string
	DefaultBranch(ctx context.Context) (string, error)
}

// CLIClient implements Client via the gh CLI.
//
//nolint:govet // Logical grouping preferred over memory optimization
type CLIClient struct {
	owner   string
	repo    string
	logger  *logx.Logger
	timeout time.Duration
}

var _ Client = (*CLIClient)(nil)

// NewClient creates a gh-backed client for the specified repository.
func NewClient(owner, repo string) *CLIClient {
	return &CLIClient{
		owner:   owner,
		repo:    repo,
		logger:  logx.NewLogger("github"),
		timeout: 30 * time.Second,
	}
}

// NewClientFromRemote creates a client by parsing a git remote URL.
func NewClientFromRemote(remoteURL string) (*CLIClient, error) {
	owner, repo, err := ParseGitHubURL(remoteURL)
	if err != nil {
		return nil, err
	}
	return NewClient(owner, repo), nil
}

// WithTimeout returns a new client with the specified per-command timeout.
func (c *CLIClient) WithTimeout(timeout time.Duration) *CLIClient {
	return &CLIClient{
		owner:   c.owner,
		repo:    c.repo,
		logger:  c.logger,
		timeout: timeout,
	}
}

// RepoPath returns the owner/repo path.
func (c *CLIClient) RepoPath() string {
	return fmt.Sprintf("%s/%s", c.owner, c.repo)
}

// CloneURL returns the anonymous HTTPS clone URL. Token injection for
// authenticated clones happens in gitops, never here.
func (c *CLIClient) CloneURL() string {
	return fmt.Sprintf("https://github.com/%s/%s.git", c.owner, c.repo)
}

// DefaultBranch returns the repository's default branch name.
func (c *CLIClient) DefaultBranch(ctx context.Context) (string, error) {
	var result struct {
		DefaultBranchRef struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
	}
	err := c.runJSON(ctx, &result, "repo", "view", c.RepoPath(), "--json", "defaultBranchRef")
	if err != nil {
		return "", err
	}
	if result.DefaultBranchRef.Name == "" {
		return "main", nil
	}
	return result.DefaultBranchRef.Name, nil
}

// CheckAuth verifies gh CLI authentication is working.
func (c *CLIClient) CheckAuth(ctx context.Context) error {
	_, err := c.run(ctx, "auth", "status")
	if err != nil {
		return fmt.Errorf("gh CLI not authenticated: %w", err)
	}
	return nil
}

// run executes a gh command and returns the output.
func (c *CLIClient) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("Executing: gh %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "gh", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Debug("Command failed: %v, output: %s", err, string(output))
		return nil, fmt.Errorf("gh command failed: %w\nOutput: %s", err, string(output))
	}
	return output, nil
}

// runJSON executes a gh command and unmarshals the JSON response.
func (c *CLIClient) runJSON(ctx context.Context, result interface{}, args ...string) error {
	output, err := c.run(ctx, args...)
	if err != nil {
		return err
	}
	if len(output) == 0 {
		return nil // Empty response is valid for some operations
	}
	if err := json.Unmarshal(output, result); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// ParseGitHubURL extracts owner and repo from SSH and HTTPS GitHub URLs.
func ParseGitHubURL(url string) (owner, repo string, err error) {
	if strings.HasPrefix(url, "git@github.com:") {
		path := strings.TrimPrefix(url, "git@github.com:")
		path = strings.TrimSuffix(path, ".git")
		parts := strings.Split(path, "/")
		if len(parts) != 2 {
			return "", "", fmt.Errorf("invalid GitHub SSH URL format: %s", url)
		}
		return parts[0], parts[1], nil
	}

	if strings.HasPrefix(url, "https://github.com/") {
		path := strings.TrimPrefix(url, "https://github.com/")
		path = strings.TrimSuffix(path, ".git")
		parts := strings.Split(path, "/")
		if len(parts) != 2 {
			return "", "", fmt.Errorf("invalid GitHub HTTPS URL format: %s", url)
		}
		return parts[0], parts[1], nil
	}

	return "", "", fmt.Errorf("unsupported Git URL format: %s", url)
}
