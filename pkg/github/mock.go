package github

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a configurable in-memory Client for tests. Zero-value
// fields return empty results; hooks override individual operations.
//
//nolint:govet // Test helper, field alignment not critical
type MockClient struct {
	mu sync.Mutex

	Issues        map[int]*Issue
	IssueComments map[int][]IssueComment
	IssueLabels   map[int][]string
	PRs           map[int]*PullRequest
	OpenPRs       []PullRequest
	PRComments    map[int][]IssueComment
	PRFiles       map[int][]PullRequestFile
	CheckRuns     map[string][]CheckRun
	Annotations   map[int64][]CheckAnnotation

	// Posted comments and reviews, recorded in call order.
	PostedIssueComments []PostedComment
	PostedPRComments    []PostedComment
	PostedReviews       []PostedReview
	CreatedPRs          []PRCreateOptions

	// Optional hooks override the default map-backed behavior.
	CreatePRFunc func(ctx context.Context, opts PRCreateOptions) (*PullRequest, error)
	GetPRFunc    func(ctx context.Context, number int) (*PullRequest, error)

	// Err, when set, is returned by every operation.
	Err error
}

// PostedComment records a comment posted during a test.
type PostedComment struct {
	Number int
	Body   string
}

// PostedReview records a formal review submitted during a test.
type PostedReview struct {
	Number  int
	Approve bool
	Body    string
}

var _ Client = (*MockClient)(nil)

// NewMockClient returns a MockClient with all maps initialized.
func NewMockClient() *MockClient {
	return &MockClient{
		Issues:        make(map[int]*Issue),
		IssueComments: make(map[int][]IssueComment),
		IssueLabels:   make(map[int][]string),
		PRs:           make(map[int]*PullRequest),
		PRComments:    make(map[int][]IssueComment),
		PRFiles:       make(map[int][]PullRequestFile),
		CheckRuns:     make(map[string][]CheckRun),
		Annotations:   make(map[int64][]CheckAnnotation),
	}
}

func (m *MockClient) GetIssue(_ context.Context, number int) (*Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	issue, ok := m.Issues[number]
	if !ok {
		return nil, fmt.Errorf("issue #%d not found", number)
	}
	return issue, nil
}

func (m *MockClient) ListOpenIssues(_ context.Context) ([]Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var issues []Issue
	for _, issue := range m.Issues {
		if issue.State == "" || issue.State == "OPEN" || issue.State == "open" {
			issues = append(issues, *issue)
		}
	}
	return issues, nil
}

func (m *MockClient) ListIssueComments(_ context.Context, number int) ([]IssueComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.IssueComments[number], nil
}

func (m *MockClient) CommentOnIssue(_ context.Context, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.PostedIssueComments = append(m.PostedIssueComments, PostedComment{Number: number, Body: body})
	return nil
}

func (m *MockClient) GetIssueLabels(_ context.Context, number int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.IssueLabels[number], nil
}

func (m *MockClient) AddIssueLabel(_ context.Context, number int, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.IssueLabels[number] = append(m.IssueLabels[number], label)
	return nil
}

func (m *MockClient) RemoveIssueLabel(_ context.Context, number int, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	labels := m.IssueLabels[number]
	kept := labels[:0]
	for _, l := range labels {
		if l != label {
			kept = append(kept, l)
		}
	}
	m.IssueLabels[number] = kept
	return nil
}

func (m *MockClient) GetPR(ctx context.Context, number int) (*PullRequest, error) {
	if m.GetPRFunc != nil {
		return m.GetPRFunc(ctx, number)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	pr, ok := m.PRs[number]
	if !ok {
		return nil, fmt.Errorf("PR #%d not found", number)
	}
	return pr, nil
}

func (m *MockClient) ListOpenPRs(_ context.Context) ([]PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.OpenPRs, nil
}

func (m *MockClient) ListPRComments(_ context.Context, number int) ([]IssueComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.PRComments[number], nil
}

func (m *MockClient) CommentOnPR(_ context.Context, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.PostedPRComments = append(m.PostedPRComments, PostedComment{Number: number, Body: body})
	return nil
}

func (m *MockClient) CreatePR(ctx context.Context, opts PRCreateOptions) (*PullRequest, error) {
	if m.CreatePRFunc != nil {
		return m.CreatePRFunc(ctx, opts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.CreatedPRs = append(m.CreatedPRs, opts)
	pr := &PullRequest{
		Number:      1000 + len(m.CreatedPRs),
		Title:       opts.Title,
		Body:        opts.Body,
		HeadRefName: opts.Head,
		URL:         fmt.Sprintf("https://github.com/mock/repo/pull/%d", 1000+len(m.CreatedPRs)),
	}
	return pr, nil
}

func (m *MockClient) CreateReview(_ context.Context, number int, approve bool, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.PostedReviews = append(m.PostedReviews, PostedReview{Number: number, Approve: approve, Body: body})
	return nil
}

func (m *MockClient) GetPRFiles(_ context.Context, number int) ([]PullRequestFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.PRFiles[number], nil
}

func (m *MockClient) ListCheckRuns(_ context.Context, ref string) ([]CheckRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.CheckRuns[ref], nil
}

func (m *MockClient) GetCheckAnnotations(_ context.Context, checkRunID int64) ([]CheckAnnotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Annotations[checkRunID], nil
}

func (m *MockClient) RepoPath() string {
	return "mock/repo"
}

func (m *MockClient) CloneURL() string {
	return "https://github.com/mock/repo.git"
}

func (m *MockClient) DefaultBranch(_ context.Context) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return "main", nil
}
