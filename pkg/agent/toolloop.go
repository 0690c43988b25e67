package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"issueagents/pkg/contextmgr"
	"issueagents/pkg/logx"
	"issueagents/pkg/tools"
)

// ToolLoop manages an LLM conversation with tool execution until the
// model signals completion or the iteration ceiling is hit.
type ToolLoop struct {
	client LLMClient
	logger *logx.Logger
}

// LoopConfig defines how the tool loop behaves for one run.
type LoopConfig struct {
	// Context holds conversation history. The caller owns it and may
	// pre-seed messages before running.
	Context *contextmgr.ContextManager

	// Provider executes tools and supplies their definitions.
	Provider *tools.Provider

	// System is the system prompt for every request.
	System string

	// InitialPrompt is appended as a user message before the first turn.
	InitialPrompt string

	MaxIterations int
	MaxTokens     int
	Temperature   float64
}

// LoopResult is the outcome of a tool loop run.
type LoopResult struct {
	// Summary is the mark_complete summary, or the model's final text
	// when the loop ended without a completion signal.
	Summary string

	// Completed is true when the model called mark_complete.
	Completed bool

	Iterations int
}

// NewToolLoop creates a loop driver for the given client.
func NewToolLoop(client LLMClient, logger *logx.Logger) *ToolLoop {
	return &ToolLoop{client: client, logger: logger}
}

const completePrefix = "COMPLETE: "

// Run drives the conversation. Every tool call in a response executes
// before checking for the terminal signal, so multi-tool turns finish
// their work.
func (tl *ToolLoop) Run(ctx context.Context, cfg *LoopConfig) (*LoopResult, error) {
	if cfg.Context == nil {
		return nil, fmt.Errorf("context manager is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("tool provider is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	if cfg.InitialPrompt != "" {
		cfg.Context.AddMessage("user", cfg.InitialPrompt)
	}

	toolDefs := cfg.Provider.Definitions()
	var lastText string

	for iteration := 1; iteration <= cfg.MaxIterations; iteration++ {
		req := CompletionRequest{
			Messages:    tl.buildMessages(cfg),
			Tools:       toolDefs,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}

		tl.logger.Debug("Tool loop iteration %d/%d (%d messages, ~%d tokens)",
			iteration, cfg.MaxIterations, len(req.Messages), cfg.Context.CountTokens())

		resp, err := tl.client.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("completion failed at iteration %d: %w", iteration, err)
		}

		if resp.Content != "" {
			cfg.Context.AddMessage("assistant", resp.Content)
			lastText = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			// Text-only turn; nudge the model toward the terminal tool.
			cfg.Context.AddMessage("user",
				"Continue with the task. When everything is done, call mark_complete with a summary.")
			continue
		}

		summary, done := tl.executeCalls(ctx, cfg, resp.ToolCalls)
		if done {
			return &LoopResult{Summary: summary, Completed: true, Iterations: iteration}, nil
		}
	}

	// Ceiling reached: ask for a plain-text summary of progress so the
	// caller can report something useful.
	summary, err := tl.requestSummary(ctx, cfg)
	if err != nil {
		summary = lastText
	}
	return &LoopResult{Summary: summary, Completed: false, Iterations: cfg.MaxIterations}, nil
}

// executeCalls runs every tool call in the turn. Returns the completion
// summary and true when mark_complete was among them.
func (tl *ToolLoop) executeCalls(ctx context.Context, cfg *LoopConfig, calls []ToolCall) (string, bool) {
	var (
		completed bool
		summary   string
	)

	for i := range calls {
		call := &calls[i]
		result, err := cfg.Provider.Execute(ctx, call.Name, call.Parameters)
		if err != nil {
			result = map[string]any{"ok": false, "error": err.Error()}
		}

		rendered := renderResult(result)
		cfg.Context.AddToolResult(call.Name, rendered)

		if call.Name == tools.ToolMarkComplete {
			completed = true
			summary = strings.TrimPrefix(rendered, completePrefix)
		}
	}
	return summary, completed
}

func (tl *ToolLoop) requestSummary(ctx context.Context, cfg *LoopConfig) (string, error) {
	cfg.Context.AddMessage("user",
		"You have reached the maximum number of steps. Summarize the work you completed and anything left unfinished.")

	resp, err := tl.client.Complete(ctx, CompletionRequest{
		Messages:    tl.buildMessages(cfg),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (tl *ToolLoop) buildMessages(cfg *LoopConfig) []CompletionMessage {
	history := cfg.Context.GetMessages()
	messages := make([]CompletionMessage, 0, len(history)+1)
	if cfg.System != "" {
		messages = append(messages, NewSystemMessage(cfg.System))
	}
	for i := range history {
		messages = append(messages, CompletionMessage{
			Role:    CompletionRole(history[i].Role),
			Content: history[i].Content,
		})
	}
	return messages
}

// renderResult turns a tool result into text for the conversation.
func renderResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
