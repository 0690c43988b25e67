package reviewer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueagents/pkg/agent"
	"issueagents/pkg/config"
	"issueagents/pkg/github"
	"issueagents/pkg/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		Repo:                "acme/widgets",
		MaxReviewIterations: config.DefaultMaxReviewIterations,
		LLM:                 config.LLMConfig{MaxTokens: 1024},
	}
}

func decisionResponse(status, summary string, issues []string) agent.CompletionResponse {
	decision := map[string]any{
		"status":  status,
		"summary": summary,
		"issues":  issues,
	}
	data, _ := json.Marshal(decision)
	return agent.CompletionResponse{Content: "```json\n" + string(data) + "\n```"}
}

func setupPR(gh *github.MockClient) {
	gh.PRs[7] = &github.PullRequest{
		Number:      7,
		Title:       "Add feature",
		Body:        "Closes #5",
		URL:         "https://github.com/acme/widgets/pull/7",
		HeadRefName: "coder-agent/issue-5-deadbeef",
		HeadRefOid:  "abc123",
	}
	gh.Issues[5] = &github.Issue{Number: 5, Title: "Feature request", Body: "Please add it."}
}

func TestExtractIssueNumber(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{"Closes #42", 42},
		{"fixes #7 and more", 7},
		{"Resolves   #12", 12},
		{"Issue: #9", 9},
		{"issue 33", 33},
		{"see #3 for details", 3},
		{"no links here", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractIssueNumber(tt.body), tt.body)
	}
}

func TestRunApproves(t *testing.T) {
	gh := github.NewMockClient()
	setupPR(gh)
	gh.IssueLabels[5] = []string{"iteration-2"}

	llm := &agent.MockLLM{Responses: []agent.CompletionResponse{
		decisionResponse(protocol.StatusApproved, "Looks good.", nil),
	}}

	r := New(gh, llm, testConfig()).WithWorkspaceRoot(t.TempDir())
	decision, err := r.Run(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, protocol.StatusApproved, decision.Status)
	assert.Equal(t, 2, decision.Iteration)
	assert.Equal(t, 5, decision.MaxIterations)

	require.Len(t, gh.PostedPRComments, 1)
	posted := gh.PostedPRComments[0].Body
	assert.Contains(t, posted, "ready for human review and merge")

	got, ok := protocol.Decode[protocol.ReviewDecision](protocol.ReviewerFeedbackMarker, posted)
	require.True(t, ok)
	assert.Equal(t, *decision, got)

	require.Len(t, gh.PostedReviews, 1)
	assert.True(t, gh.PostedReviews[0].Approve)
}

func TestRunForcedApprovalAtCeiling(t *testing.T) {
	gh := github.NewMockClient()
	setupPR(gh)
	gh.IssueLabels[5] = []string{"iteration-5"}

	llm := &agent.MockLLM{Responses: []agent.CompletionResponse{
		decisionResponse(protocol.StatusChangesRequested, "Still broken.", []string{"Bug remains"}),
	}}

	r := New(gh, llm, testConfig()).WithWorkspaceRoot(t.TempDir())
	decision, err := r.Run(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, protocol.StatusApproved, decision.Status)
	assert.Contains(t, decision.Summary, "Forced approval after 5 iterations")
	assert.Contains(t, decision.Summary, "Still broken.")
	require.NotEmpty(t, decision.Issues)
	assert.Contains(t, decision.Issues[0], "exceeded the maximum iteration limit")
	assert.Contains(t, decision.Issues, "Bug remains")

	require.Len(t, gh.PostedReviews, 1)
	assert.True(t, gh.PostedReviews[0].Approve)
}

func TestRunCIOverrideDowngradesApproval(t *testing.T) {
	gh := github.NewMockClient()
	setupPR(gh)
	gh.IssueLabels[5] = []string{"iteration-1"}
	gh.CheckRuns["abc123"] = []github.CheckRun{
		{Name: "ci/test", Status: "completed", Conclusion: "failure"},
	}

	llm := &agent.MockLLM{Responses: []agent.CompletionResponse{
		decisionResponse(protocol.StatusApproved, "Looks good.", nil),
	}}

	r := New(gh, llm, testConfig()).WithWorkspaceRoot(t.TempDir())
	decision, err := r.Run(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, protocol.StatusChangesRequested, decision.Status)
	assert.Contains(t, decision.Issues, "CI checks are failing. Please fix before approval.")

	require.Len(t, gh.PostedReviews, 1)
	assert.False(t, gh.PostedReviews[0].Approve)
}

func TestRunForcedApprovalSkipsCIOverride(t *testing.T) {
	gh := github.NewMockClient()
	setupPR(gh)
	gh.IssueLabels[5] = []string{"iteration-5"}
	gh.CheckRuns["abc123"] = []github.CheckRun{
		{Name: "ci/test", Status: "completed", Conclusion: "failure"},
	}

	llm := &agent.MockLLM{Responses: []agent.CompletionResponse{
		decisionResponse(protocol.StatusChangesRequested, "Still broken.", nil),
	}}

	r := New(gh, llm, testConfig()).WithWorkspaceRoot(t.TempDir())
	decision, err := r.Run(context.Background(), 7)
	require.NoError(t, err)

	// Forced approvals stick even with failing CI.
	assert.Equal(t, protocol.StatusApproved, decision.Status)
}

func TestRunFailedLLMRequestsChanges(t *testing.T) {
	gh := github.NewMockClient()
	setupPR(gh)

	llm := &agent.MockLLM{Errs: []error{assert.AnError}}

	r := New(gh, llm, testConfig()).WithWorkspaceRoot(t.TempDir())
	decision, err := r.Run(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, protocol.StatusChangesRequested, decision.Status)
	assert.Contains(t, decision.Issues, "Could not complete automated review")
}

func TestFormatDiffSummaryTruncates(t *testing.T) {
	files := []github.PullRequestFile{
		{Filename: "a.go", Additions: 3, Deletions: 1, Status: "modified", Patch: strings.Repeat("x", 4000)},
		{Filename: "b.go", Additions: 2, Deletions: 0, Status: "added", Patch: strings.Repeat("y", 4000)},
	}
	got := formatDiffSummary(files)

	assert.Contains(t, got, "Changed files (2 total):")
	assert.Contains(t, got, "- a.go (+3/-1) [modified]")
	assert.Contains(t, got, "Total: +5/-1")
	assert.Contains(t, got, "truncated due to size")
	assert.NotContains(t, got, strings.Repeat("y", 4000))
}

func TestFormatCIStatus(t *testing.T) {
	assert.Equal(t, "No CI checks found.", formatCIStatus(nil))

	passing := formatCIStatus([]github.CheckRun{
		{Name: "build", Status: "completed", Conclusion: "success"},
	})
	assert.Contains(t, passing, "All CI checks passed.")

	failing := formatCIStatus([]github.CheckRun{
		{Name: "build", Status: "completed", Conclusion: "success"},
		{Name: "test", Status: "completed", Conclusion: "failure"},
	})
	assert.Contains(t, failing, "Some CI checks are failing.")
	assert.Contains(t, failing, "❌ test: failure")

	// Runs that have not completed are pending, not failures.
	pending := formatCIStatus([]github.CheckRun{
		{Name: "build", Status: "completed", Conclusion: "success"},
		{Name: "test", Status: "in_progress"},
	})
	assert.Contains(t, pending, "⏳ test: in_progress")
	assert.Contains(t, pending, "Some CI checks are still running.")
	assert.NotContains(t, pending, "❌")
}
