// Package anthropic provides the Claude implementation of the
// agent.LLMClient interface.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"issueagents/pkg/agent"
	"issueagents/pkg/metrics"
)

// DefaultModel is used when the configuration names no model.
const DefaultModel = "claude-sonnet-4-5"

// Client wraps the Anthropic API client.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

var _ agent.LLMClient = (*Client)(nil)

// New creates a Claude client.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// normalize extracts the system prompt and merges consecutive
// non-assistant messages so the result strictly alternates user and
// assistant, starting and ending with user, as the Messages API
// requires.
func normalize(messages []agent.CompletionMessage) (string, []agent.CompletionMessage, error) {
	var systemParts []string
	var rest []agent.CompletionMessage
	for i := range messages {
		if messages[i].Role == agent.RoleSystem {
			systemParts = append(systemParts, messages[i].Content)
			continue
		}
		rest = append(rest, messages[i])
	}

	var merged []agent.CompletionMessage
	var userParts []string
	flush := func() {
		if len(userParts) > 0 {
			merged = append(merged, agent.NewUserMessage(strings.Join(userParts, "\n\n")))
			userParts = nil
		}
	}
	for i := range rest {
		if rest[i].Role == agent.RoleAssistant {
			flush()
			merged = append(merged, rest[i])
		} else {
			userParts = append(userParts, rest[i].Content)
		}
	}
	flush()

	if len(merged) == 0 {
		return "", nil, fmt.Errorf("no user messages in request")
	}
	if merged[0].Role != agent.RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got %s", merged[0].Role)
	}
	if merged[len(merged)-1].Role != agent.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got %s", merged[len(merged)-1].Role)
	}
	return strings.Join(systemParts, "\n\n"), merged, nil
}

// Complete implements agent.LLMClient.
func (c *Client) Complete(ctx context.Context, in agent.CompletionRequest) (agent.CompletionResponse, error) {
	systemPrompt, merged, err := normalize(in.Messages)
	if err != nil {
		return agent.CompletionResponse{}, fmt.Errorf("message normalization: %w", err)
	}

	messages := make([]anthropic.MessageParam, 0, len(merged))
	for i := range merged {
		msg := &merged[i]
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(in.Temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: systemPrompt,
			Type: "text",
		}}
	}

	if len(in.Tools) > 0 {
		var toolParams []anthropic.ToolUnionParam
		for i := range in.Tools {
			tool := &in.Tools[i]

			props := make(map[string]any, len(tool.InputSchema.Properties))
			for name := range tool.InputSchema.Properties {
				prop := tool.InputSchema.Properties[name]
				propMap := map[string]any{"type": prop.Type}
				if prop.Description != "" {
					propMap["description"] = prop.Description
				}
				if len(prop.Enum) > 0 {
					propMap["enum"] = prop.Enum
				}
				props[name] = propMap
			}

			schema := anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: props,
				Required:   tool.InputSchema.Required,
			}
			toolParams = append(toolParams, anthropic.ToolUnionParamOfTool(schema, tool.Name))
		}
		params.Tools = toolParams
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return agent.CompletionResponse{}, fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return agent.CompletionResponse{}, fmt.Errorf("empty response from Anthropic API")
	}

	var responseText string
	var toolCalls []agent.ToolCall
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			responseText += block.AsText().Text
		case "tool_use":
			toolUse := block.AsToolUse()
			var parameters map[string]any
			if err := json.Unmarshal(toolUse.Input, &parameters); err != nil {
				return agent.CompletionResponse{}, fmt.Errorf("failed to parse tool input: %w", err)
			}
			toolCalls = append(toolCalls, agent.ToolCall{
				ID:         toolUse.ID,
				Name:       toolUse.Name,
				Parameters: parameters,
			})
		}
	}

	metrics.ObserveLLMUsage("anthropic", resp.Usage.InputTokens, resp.Usage.OutputTokens)

	return agent.CompletionResponse{
		Content:    responseText,
		ToolCalls:  toolCalls,
		StopReason: string(resp.StopReason),
		Usage: agent.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// GetModelName returns the configured model.
func (c *Client) GetModelName() string {
	return string(c.model)
}
