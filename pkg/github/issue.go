package github

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Issue represents a GitHub issue as returned by gh --json queries.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	URL       string    `json:"url"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	Author    Author    `json:"author"`
	Labels    []Label   `json:"labels"`
}

// Author identifies the user who created an issue or PR.
type Author struct {
	Login string `json:"login"`
}

// Label is a GitHub issue label.
type Label struct {
	Name string `json:"name"`
}

// IssueComment represents a comment from the REST issues API. PR
// conversation comments use the same endpoint and shape.
type IssueComment struct {
	ID        int64       `json:"id"`
	Body      string      `json:"body"`
	User      CommentUser `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
	HTMLURL   string      `json:"html_url"`
}

// CommentUser identifies a comment author.
type CommentUser struct {
	Login string `json:"login"`
}

const issueListFields = "number,title,body,url,state,createdAt,author,labels"

// GetIssue fetches a single issue.
func (c *CLIClient) GetIssue(ctx context.Context, number int) (*Issue, error) {
	var issue Issue
	err := c.runJSON(ctx, &issue, "issue", "view", strconv.Itoa(number),
		"--repo", c.RepoPath(), "--json", issueListFields)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue #%d: %w", number, err)
	}
	return &issue, nil
}

// ListOpenIssues lists open issues, oldest first. gh excludes pull
// requests from issue listings, which is what the watcher wants.
func (c *CLIClient) ListOpenIssues(ctx context.Context) ([]Issue, error) {
	var issues []Issue
	err := c.runJSON(ctx, &issues, "issue", "list",
		"--repo", c.RepoPath(), "--state", "open",
		"--limit", "100", "--json", issueListFields)
	if err != nil {
		return nil, fmt.Errorf("failed to list open issues: %w", err)
	}
	return issues, nil
}

// ListIssueComments returns all comments on an issue in creation order.
func (c *CLIClient) ListIssueComments(ctx context.Context, number int) ([]IssueComment, error) {
	var comments []IssueComment
	endpoint := fmt.Sprintf("repos/%s/issues/%d/comments?per_page=100", c.RepoPath(), number)
	err := c.runJSON(ctx, &comments, "api", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for issue #%d: %w", number, err)
	}
	return comments, nil
}

// CommentOnIssue posts a comment on an issue.
func (c *CLIClient) CommentOnIssue(ctx context.Context, number int, body string) error {
	_, err := c.run(ctx, "issue", "comment", strconv.Itoa(number),
		"--repo", c.RepoPath(), "--body", body)
	if err != nil {
		return fmt.Errorf("failed to comment on issue #%d: %w", number, err)
	}
	return nil
}

// GetIssueLabels returns the label names currently on an issue.
func (c *CLIClient) GetIssueLabels(ctx context.Context, number int) ([]string, error) {
	var result struct {
		Labels []Label `json:"labels"`
	}
	err := c.runJSON(ctx, &result, "issue", "view", strconv.Itoa(number),
		"--repo", c.RepoPath(), "--json", "labels")
	if err != nil {
		return nil, fmt.Errorf("failed to get labels for issue #%d: %w", number, err)
	}
	names := make([]string, 0, len(result.Labels))
	for _, l := range result.Labels {
		names = append(names, l.Name)
	}
	return names, nil
}

// AddIssueLabel adds a label to an issue, creating it if necessary.
func (c *CLIClient) AddIssueLabel(ctx context.Context, number int, label string) error {
	_, err := c.run(ctx, "issue", "edit", strconv.Itoa(number),
		"--repo", c.RepoPath(), "--add-label", label)
	if err != nil {
		return fmt.Errorf("failed to add label %q to issue #%d: %w", label, number, err)
	}
	return nil
}

// RemoveIssueLabel removes a label from an issue.
func (c *CLIClient) RemoveIssueLabel(ctx context.Context, number int, label string) error {
	_, err := c.run(ctx, "issue", "edit", strconv.Itoa(number),
		"--repo", c.RepoPath(), "--remove-label", label)
	if err != nil {
		return fmt.Errorf("failed to remove label %q from issue #%d: %w", label, number, err)
	}
	return nil
}
