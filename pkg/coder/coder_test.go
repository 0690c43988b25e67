package coder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueagents/pkg/agent"
	"issueagents/pkg/config"
	"issueagents/pkg/github"
	"issueagents/pkg/gitops"
	"issueagents/pkg/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		Repo:               "acme/widgets",
		Token:              "tok",
		MaxDevIterations:   config.DefaultMaxDevIterations,
		MaxAgentIterations: config.DefaultMaxAgentIterations,
		LLM:                config.LLMConfig{MaxTokens: 1024},
	}
}

func planComment(t *testing.T, id int64, createdAt time.Time, plan protocol.Plan) github.IssueComment {
	t.Helper()
	body, err := protocol.Encode(protocol.PlanMarker, plan, []string{"🧭 **Planner Agent created a plan.**"})
	require.NoError(t, err)
	return github.IssueComment{ID: id, Body: body, CreatedAt: createdAt}
}

func completingLLM(summary string) *agent.MockLLM {
	return &agent.MockLLM{
		Responses: []agent.CompletionResponse{{
			ToolCalls: []agent.ToolCall{{
				ID:         "call_1",
				Name:       "mark_complete",
				Parameters: map[string]any{"summary": summary},
			}},
		}},
	}
}

func TestRunForIssueNoPlan(t *testing.T) {
	gh := github.NewMockClient()
	gh.Issues[5] = &github.Issue{Number: 5, Title: "Broken thing", URL: "https://github.com/acme/widgets/issues/5"}

	runner := gitops.NewRecordingGitRunner()
	c := New(gh, &agent.MockLLM{}, runner, testConfig())

	err := c.RunForIssue(context.Background(), 5, RunOptions{})
	require.NoError(t, err)

	require.Len(t, gh.PostedIssueComments, 1)
	assert.Contains(t, gh.PostedIssueComments[0].Body, "could not find a plan")
	// No git activity before the plan check.
	assert.Empty(t, runner.Commands)
}

func TestRunForIssueCeilingHaltsBeforePipeline(t *testing.T) {
	gh := github.NewMockClient()
	gh.Issues[5] = &github.Issue{Number: 5, Title: "Broken thing", URL: "https://github.com/acme/widgets/issues/5"}
	gh.IssueComments[5] = []github.IssueComment{
		planComment(t, 1, time.Now(), protocol.Plan{Summary: "Fix it", Steps: []string{"Do the fix"}}),
	}
	gh.IssueLabels[5] = []string{"bug", "iteration-5"}

	runner := gitops.NewRecordingGitRunner()
	c := New(gh, &agent.MockLLM{}, runner, testConfig())

	err := c.RunForIssue(context.Background(), 5, RunOptions{})
	require.NoError(t, err)

	require.Len(t, gh.PostedIssueComments, 1)
	assert.Contains(t, gh.PostedIssueComments[0].Body, "Maximum iterations reached")
	assert.Contains(t, gh.PostedIssueComments[0].Body, "Iterations: 5/5")
	assert.Empty(t, runner.Commands)
	// The label must not advance past the ceiling.
	assert.Contains(t, gh.IssueLabels[5], "iteration-5")
}

func TestRunForIssueCreatesPR(t *testing.T) {
	gh := github.NewMockClient()
	gh.Issues[5] = &github.Issue{Number: 5, Title: "Add feature", URL: "https://github.com/acme/widgets/issues/5"}
	gh.IssueComments[5] = []github.IssueComment{
		planComment(t, 1, time.Now(), protocol.Plan{Summary: "Add it", Steps: []string{"Write code", "Write tests"}}),
	}

	runner := gitops.NewRecordingGitRunner()
	runner.Outputs["status"] = " M main.go\n"

	c := New(gh, completingLLM("Implemented the feature."), runner, testConfig())

	err := c.RunForIssue(context.Background(), 5, RunOptions{})
	require.NoError(t, err)

	// Iteration advanced to 1.
	assert.Contains(t, gh.IssueLabels[5], "iteration-1")

	require.Len(t, gh.CreatedPRs, 1)
	created := gh.CreatedPRs[0]
	assert.Equal(t, "[Coder Agent] Add feature (#5)", created.Title)
	assert.Contains(t, created.Body, "Closes #5")
	assert.True(t, IsCoderBranch(created.Head))

	lines := runner.CommandLines()
	assert.Contains(t, lines[0], "git clone --depth 1")
	assert.Contains(t, lines, fmt.Sprintf("git checkout -b %s", created.Head))
	assert.Contains(t, lines, fmt.Sprintf("git push -u origin %s", created.Head))

	// Final status comment mentions the PR.
	last := gh.PostedIssueComments[len(gh.PostedIssueComments)-1]
	assert.Contains(t, last.Body, "completed implementation (iteration 1/5)")
}

func TestRunForIssueNoChanges(t *testing.T) {
	gh := github.NewMockClient()
	gh.Issues[5] = &github.Issue{Number: 5, Title: "Add feature", URL: "https://github.com/acme/widgets/issues/5"}
	gh.IssueComments[5] = []github.IssueComment{
		planComment(t, 1, time.Now(), protocol.Plan{Summary: "Add it", Steps: []string{"Write code"}}),
	}

	runner := gitops.NewRecordingGitRunner() // empty status output: clean tree

	c := New(gh, completingLLM("Nothing needed doing."), runner, testConfig())

	err := c.RunForIssue(context.Background(), 5, RunOptions{})
	require.NoError(t, err)

	assert.Empty(t, gh.CreatedPRs)
	last := gh.PostedIssueComments[len(gh.PostedIssueComments)-1]
	assert.Contains(t, last.Body, "made no changes")
	for _, line := range runner.CommandLines() {
		assert.NotContains(t, line, "git push")
	}
}

func TestRunForPRCommitsToHeadBranch(t *testing.T) {
	gh := github.NewMockClient()
	gh.PRs[9] = &github.PullRequest{Number: 9, Title: "Fix bug", Body: "Closes #5", HeadRefName: "coder-agent/issue-5-deadbeef"}
	gh.PRComments[9] = []github.IssueComment{
		{ID: 1, Body: "Please rename the helper.", User: github.CommentUser{Login: "reviewer-human"}, CreatedAt: time.Now()},
	}

	runner := gitops.NewRecordingGitRunner()
	runner.Outputs["status"] = " M main.go\n"

	c := New(gh, completingLLM("Renamed the helper."), runner, testConfig())

	err := c.RunForPR(context.Background(), 9, false)
	require.NoError(t, err)

	lines := runner.CommandLines()
	// Clones the PR head directly instead of checking it out afterward.
	assert.Contains(t, lines[0], "--branch coder-agent/issue-5-deadbeef")
	assert.Contains(t, lines, "git push -u origin coder-agent/issue-5-deadbeef")
}

func TestLatestCIFeedbackFlattensReport(t *testing.T) {
	line := 12
	analysis := protocol.CIAnalysis{
		Status:       protocol.CIStatusAnalyzed,
		Summary:      "Lint failures",
		FailedChecks: []string{"lint"},
		RootCauses:   []string{"unused import"},
		Suggestions: []protocol.CIFixSuggestion{
			{File: "main.go", Line: &line, Issue: "unused import", Suggestion: "remove the import"},
		},
		GeneralAdvice: []string{"Run the linter locally."},
	}
	body, err := protocol.Encode(protocol.CIFixerReportMarker, analysis, nil)
	require.NoError(t, err)

	items := LatestCIFeedback([]github.IssueComment{{ID: 1, Body: body, CreatedAt: time.Now()}})
	require.Len(t, items, 3)
	assert.Equal(t, "main.go:12: unused import (remove the import)", items[0])
	assert.Equal(t, "Root cause: unused import", items[1])
	assert.Equal(t, "Run the linter locally.", items[2])
}

func TestBuildInstructionsIncludesFeedback(t *testing.T) {
	in := &promptInputs{
		Iteration:        3,
		MaxIterations:    5,
		ReviewerFeedback: []string{"Handle the nil case"},
		CIFeedback:       []string{"main.go:1: syntax error (fix it)"},
		CIFixMode:        true,
	}
	got := buildInstructions("Title", "Body", protocol.Plan{Summary: "S", Steps: []string{"one", "two"}}, in)

	assert.Contains(t, got, "Mode: CI Fix")
	assert.Contains(t, got, "CI Failure Analysis")
	assert.Contains(t, got, "This is iteration 3/5. The reviewer found the following issues:")
	assert.Contains(t, got, "  - Handle the nil case")
	assert.Contains(t, got, "This is iteration 3/5 of the development cycle.")
	assert.Contains(t, got, "  1. one\n  2. two")
}

func TestBuildInstructionsFirstIterationOmitsNote(t *testing.T) {
	in := &promptInputs{Iteration: 1, MaxIterations: 5}
	got := buildInstructions("Title", "Body", protocol.Plan{Summary: "S", Steps: []string{"one"}}, in)

	assert.NotContains(t, got, "Iteration Note")
	assert.NotContains(t, got, "Mode: CI Fix")
	assert.NotContains(t, got, "Reviewer Feedback")
}
