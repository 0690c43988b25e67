package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueagents/pkg/agent"
	"issueagents/pkg/config"
	"issueagents/pkg/github"
	"issueagents/pkg/gitops"
)

func TestOrchestratorCodePRRunsCommentModeTurn(t *testing.T) {
	gh := github.NewMockClient()
	gh.PRs[9] = &github.PullRequest{
		Number:      9,
		Title:       "Fix bug",
		Body:        "Closes #5",
		HeadRefName: "coder-agent/issue-5-deadbeef",
	}
	gh.PRComments[9] = []github.IssueComment{
		{ID: 1, Body: "Please rename the helper.", User: github.CommentUser{Login: "reviewer-human"}, CreatedAt: time.Now()},
	}

	runner := gitops.NewRecordingGitRunner()
	runner.Outputs["status"] = " M main.go\n"

	llm := &agent.MockLLM{Responses: []agent.CompletionResponse{{
		ToolCalls: []agent.ToolCall{{
			ID:         "call_1",
			Name:       "mark_complete",
			Parameters: map[string]any{"summary": "Renamed the helper."},
		}},
	}}}

	cfg := &config.Config{
		Repo:               "acme/widgets",
		Token:              "tok",
		MaxDevIterations:   config.DefaultMaxDevIterations,
		MaxAgentIterations: config.DefaultMaxAgentIterations,
		LLM:                config.LLMConfig{MaxTokens: 1024},
	}
	orch := NewOrchestrator(gh, llm, runner, cfg)

	require.NoError(t, orch.CodePR(context.Background(), 9))

	lines := runner.CommandLines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "--branch coder-agent/issue-5-deadbeef")
	assert.Contains(t, lines, "git push -u origin coder-agent/issue-5-deadbeef")
}
