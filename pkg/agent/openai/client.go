// Package openai provides the OpenAI implementation of the
// agent.LLMClient interface using the official Go package's Responses
// API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"issueagents/pkg/agent"
	"issueagents/pkg/metrics"
)

// DefaultModel is used when the configuration names no model.
const DefaultModel = "gpt-5"

// Client wraps the official OpenAI Go client.
type Client struct {
	client openai.Client
	model  string
}

var _ agent.LLMClient = (*Client)(nil)

// New creates an OpenAI client.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements agent.LLMClient.
func (c *Client) Complete(ctx context.Context, in agent.CompletionRequest) (agent.CompletionResponse, error) {
	// The Responses API takes a single input; fold the conversation into
	// labeled sections.
	var inputText string
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case agent.RoleSystem:
			inputText += fmt.Sprintf("System: %s\n\n", msg.Content)
		case agent.RoleAssistant:
			inputText += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
		default:
			inputText += msg.Content + "\n\n"
		}
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	}

	if len(in.Tools) > 0 {
		toolParams := make([]responses.ToolUnionParam, len(in.Tools))
		for i := range in.Tools {
			tool := &in.Tools[i]

			properties := make(map[string]any, len(tool.InputSchema.Properties))
			for name := range tool.InputSchema.Properties {
				prop := tool.InputSchema.Properties[name]
				schema := map[string]any{"type": prop.Type}
				if prop.Description != "" {
					schema["description"] = prop.Description
				}
				if len(prop.Enum) > 0 {
					schema["enum"] = prop.Enum
				}
				properties[name] = schema
			}

			toolParams[i] = responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters: openai.FunctionParameters(map[string]any{
						"type":       "object",
						"properties": properties,
						"required":   tool.InputSchema.Required,
					}),
				},
			}
		}
		params.Tools = toolParams
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return agent.CompletionResponse{}, fmt.Errorf("openai request failed: %w", err)
	}
	if resp == nil {
		return agent.CompletionResponse{}, fmt.Errorf("empty response from OpenAI API")
	}

	var toolCalls []agent.ToolCall
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		funcCall := item.AsFunctionCall()

		var parameters map[string]any
		if funcCall.Arguments != "" {
			if err := json.Unmarshal([]byte(funcCall.Arguments), &parameters); err != nil {
				continue // unparseable arguments, skip the call
			}
		}
		toolCalls = append(toolCalls, agent.ToolCall{
			ID:         funcCall.ID,
			Name:       funcCall.Name,
			Parameters: parameters,
		})
	}

	metrics.ObserveLLMUsage("openai", resp.Usage.InputTokens, resp.Usage.OutputTokens)

	return agent.CompletionResponse{
		Content:   resp.OutputText(),
		ToolCalls: toolCalls,
		Usage: agent.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// GetModelName returns the configured model.
func (c *Client) GetModelName() string {
	return c.model
}
