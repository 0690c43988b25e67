package tools

import (
	"context"
	"fmt"
)

// markCompleteTool is the terminal tool. The tool loop stops when the
// model calls it; the summary becomes the turn's result.
type markCompleteTool struct{}

func (t *markCompleteTool) Name() string { return ToolMarkComplete }

func (t *markCompleteTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolMarkComplete,
		Description: "Signal that all work is finished. Call this exactly once, with a summary of everything you did.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"summary": {Type: "string", Description: "Summary of the completed work"},
			},
			Required: []string{"summary"},
		},
	}
}

func (t *markCompleteTool) Exec(_ context.Context, args map[string]any) (any, error) {
	summary, _ := stringArg(args, "summary")
	return fmt.Sprintf("COMPLETE: %s", summary), nil
}
