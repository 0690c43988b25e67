package tools

import (
	"context"
)

type searchCodebaseTool struct{ p *Provider }

func (t *searchCodebaseTool) Name() string { return ToolSearchCodebase }

func (t *searchCodebaseTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolSearchCodebase,
		Description: "Search the codebase for a substring. Returns matching files ranked by occurrence count with short snippets.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query":       {Type: "string", Description: "Text to search for (case-insensitive)"},
				"max_results": {Type: "integer", Description: "Maximum files to return (default 10)"},
			},
			Required: []string{"query"},
		},
	}
}

func (t *searchCodebaseTool) Exec(_ context.Context, args map[string]any) (any, error) {
	query, ok := stringArg(args, "query")
	if !ok || query == "" {
		return errResult("query is required"), nil
	}
	limit := intArgOrDefault(args, "max_results", 10)

	if t.p.index == nil {
		return okResult(map[string]any{"results": []any{}}), nil
	}

	results := t.p.index.Search(query, limit)
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"path":    r.Path,
			"score":   r.Score,
			"snippet": r.Snippet,
		})
	}
	return okResult(map[string]any{"results": out}), nil
}
