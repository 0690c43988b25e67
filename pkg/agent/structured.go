package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var structuredFencedRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// ExtractJSON pulls a JSON object out of model output: a fenced block
// if present, otherwise the outermost braces.
func ExtractJSON(text string) (string, error) {
	if match := structuredFencedRegex.FindStringSubmatch(text); match != nil {
		return match[1], nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object found in model output")
	}
	return text[start : end+1], nil
}

// CompleteJSON runs a completion and unmarshals the response into out.
// The request should already instruct the model to answer with JSON
// only; this adds a reinforcing system message when none is present.
func CompleteJSON(ctx context.Context, client LLMClient, in CompletionRequest, out any) error {
	hasSystem := false
	for i := range in.Messages {
		if in.Messages[i].Role == RoleSystem {
			hasSystem = true
			break
		}
	}
	if !hasSystem {
		in.Messages = append([]CompletionMessage{
			NewSystemMessage("Respond with a single JSON object and nothing else."),
		}, in.Messages...)
	}

	resp, err := client.Complete(ctx, in)
	if err != nil {
		return err
	}

	raw, err := ExtractJSON(resp.Content)
	if err != nil {
		return fmt.Errorf("structured completion: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("structured completion: invalid JSON: %w", err)
	}
	return nil
}
