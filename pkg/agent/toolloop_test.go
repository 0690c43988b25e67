package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueagents/pkg/contextmgr"
	"issueagents/pkg/logx"
	"issueagents/pkg/tools"
)

func newLoop(mock *MockLLM, root string) (*ToolLoop, *LoopConfig) {
	loop := NewToolLoop(mock, logx.NewLogger("test"))
	cfg := &LoopConfig{
		Context:       contextmgr.NewContextManager(),
		Provider:      tools.NewProvider(root, nil),
		System:        "You are a coding agent.",
		InitialPrompt: "Do the work.",
		MaxIterations: 5,
		MaxTokens:     1024,
	}
	return loop, cfg
}

func TestRunCompletesOnMarkComplete(t *testing.T) {
	mock := &MockLLM{Responses: []CompletionResponse{
		{
			Content: "Writing the file now.",
			ToolCalls: []ToolCall{
				{ID: "1", Name: tools.ToolWriteFile, Parameters: map[string]any{"path": "a.txt", "content": "hi"}},
			},
		},
		{
			ToolCalls: []ToolCall{
				{ID: "2", Name: tools.ToolMarkComplete, Parameters: map[string]any{"summary": "wrote a.txt"}},
			},
		},
	}}

	loop, cfg := newLoop(mock, t.TempDir())
	result, err := loop.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Equal(t, "wrote a.txt", result.Summary)
	assert.Equal(t, 2, result.Iterations)
}

func TestRunExecutesAllCallsInTurn(t *testing.T) {
	mock := &MockLLM{Responses: []CompletionResponse{
		{
			ToolCalls: []ToolCall{
				{ID: "1", Name: tools.ToolWriteFile, Parameters: map[string]any{"path": "a.txt", "content": "A"}},
				{ID: "2", Name: tools.ToolWriteFile, Parameters: map[string]any{"path": "b.txt", "content": "B"}},
				{ID: "3", Name: tools.ToolMarkComplete, Parameters: map[string]any{"summary": "two files"}},
			},
		},
	}}

	root := t.TempDir()
	loop, cfg := newLoop(mock, root)
	result, err := loop.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, result.Completed)

	// Both writes ran even though mark_complete was in the same turn.
	res, execErr := cfg.Provider.Execute(context.Background(), tools.ToolReadFile, map[string]any{"path": "b.txt"})
	require.NoError(t, execErr)
	assert.Equal(t, "B", res.(map[string]any)["content"])
}

func TestRunIterationCeiling(t *testing.T) {
	// The model keeps listing the directory and never finishes.
	mock := &MockLLM{Responses: []CompletionResponse{
		{ToolCalls: []ToolCall{{ID: "1", Name: tools.ToolListDir, Parameters: map[string]any{}}}},
	}}

	loop, cfg := newLoop(mock, t.TempDir())
	cfg.MaxIterations = 3

	result, err := loop.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, result.Completed)
	assert.Equal(t, 3, result.Iterations)
	// 3 loop iterations plus the final summary request.
	assert.Equal(t, 4, mock.CallCount())
}

func TestRunTextOnlyTurnContinues(t *testing.T) {
	mock := &MockLLM{Responses: []CompletionResponse{
		{Content: "Let me think about this."},
		{ToolCalls: []ToolCall{{ID: "1", Name: tools.ToolMarkComplete, Parameters: map[string]any{"summary": "done"}}}},
	}}

	loop, cfg := newLoop(mock, t.TempDir())
	result, err := loop.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, "done", result.Summary)
}
