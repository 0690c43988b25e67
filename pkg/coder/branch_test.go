package coder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueagents/pkg/github"
)

func TestNewBranchName(t *testing.T) {
	name := NewBranchName(42)
	assert.True(t, IsCoderBranch(name), "generated name %q should match the pattern", name)

	// Suffixes must differ across calls.
	assert.NotEqual(t, name, NewBranchName(42))
}

func TestIsCoderBranch(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"coder-agent/issue-42-deadbeef", true},
		{"coder-agent/issue-7-0123abcd", true},
		{"coder-agent/issue-42-short", false},
		{"coder-agent/issue-42-DEADBEEF", false},
		{"feature/issue-42-deadbeef", false},
		{"coder-agent/issue--deadbeef", false},
		{"coder-agent/issue-42-deadbeef-extra", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCoderBranch(tt.ref), tt.ref)
	}
}

func TestResolveBranchReusesExistingPR(t *testing.T) {
	gh := github.NewMockClient()
	gh.OpenPRs = []github.PullRequest{
		{Number: 9, HeadRefName: "feature/unrelated"},
		{Number: 10, HeadRefName: "coder-agent/issue-42-deadbeef"},
		{Number: 11, HeadRefName: "coder-agent/issue-42-cafebabe"},
	}

	info, err := ResolveBranch(context.Background(), gh, 42, 0)
	require.NoError(t, err)
	assert.True(t, info.IsUpdate)
	// First match wins when duplicates exist.
	assert.Equal(t, "coder-agent/issue-42-deadbeef", info.Name)
}

func TestResolveBranchGeneratesFreshName(t *testing.T) {
	gh := github.NewMockClient()
	gh.OpenPRs = []github.PullRequest{
		{Number: 10, HeadRefName: "coder-agent/issue-421-deadbeef"},
	}

	info, err := ResolveBranch(context.Background(), gh, 42, 0)
	require.NoError(t, err)
	assert.False(t, info.IsUpdate)
	assert.True(t, IsCoderBranch(info.Name))
	assert.Contains(t, info.Name, "coder-agent/issue-42-")
}

func TestResolveBranchCIFixModeTrustsPRHead(t *testing.T) {
	gh := github.NewMockClient()
	gh.PRs[77] = &github.PullRequest{Number: 77, HeadRefName: "some/custom-branch"}

	info, err := ResolveBranch(context.Background(), gh, 42, 77)
	require.NoError(t, err)
	assert.True(t, info.IsUpdate)
	assert.Equal(t, "some/custom-branch", info.Name)
}
