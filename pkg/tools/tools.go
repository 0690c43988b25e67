// Package tools implements the tool surface exposed to the coder's LLM
// loop: workspace file operations, codebase search, and the terminal
// mark_complete tool. Every path is confined to the workspace root.
package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"issueagents/pkg/index"
	"issueagents/pkg/logx"
)

// Tool names. The set is fixed; adding a tool means wiring it into
// NewProvider.
const (
	ToolGetWorkdir     = "get_workdir"
	ToolListDir        = "list_dir"
	ToolReadFile       = "read_file"
	ToolCreateFile     = "create_file"
	ToolWriteFile      = "write_file"
	ToolAppendFile     = "append_file"
	ToolReplaceInFile  = "replace_in_file"
	ToolDeleteFile     = "delete_file"
	ToolMakeDir        = "make_dir"
	ToolSearchCodebase = "search_codebase"
	ToolMarkComplete   = "mark_complete"
)

// Property describes one parameter in a tool's input schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// InputSchema is the JSON-schema object for a tool's parameters.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is the provider-neutral tool description handed to the
// LLM clients.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Tool is one executable capability.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	Exec(ctx context.Context, args map[string]any) (any, error)
}

// Provider bundles the tool set for one workspace. Tool results use the
// map convention {"ok": bool, ...}; Go errors are reserved for faults in
// the loop itself.
type Provider struct {
	root   string
	index  *index.Index
	tools  map[string]Tool
	order  []string
	logger *logx.Logger
}

// NewProvider creates the full tool set rooted at the workspace
// directory. The index may be nil, in which case search_codebase
// reports an empty result.
func NewProvider(root string, ix *index.Index) *Provider {
	p := &Provider{
		root:   filepath.Clean(root),
		index:  ix,
		tools:  make(map[string]Tool),
		logger: logx.NewLogger("tools"),
	}
	for _, t := range []Tool{
		&getWorkdirTool{p},
		&listDirTool{p},
		&readFileTool{p},
		&createFileTool{p},
		&writeFileTool{p},
		&appendFileTool{p},
		&replaceInFileTool{p},
		&deleteFileTool{p},
		&makeDirTool{p},
		&searchCodebaseTool{p},
		&markCompleteTool{},
	} {
		p.tools[t.Name()] = t
		p.order = append(p.order, t.Name())
	}
	return p
}

// Definitions returns the tool definitions in registration order.
func (p *Provider) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(p.order))
	for _, name := range p.order {
		defs = append(defs, p.tools[name].Definition())
	}
	return defs
}

// Execute runs a named tool. An unknown tool yields an error result,
// not a Go error, so the model can recover.
func (p *Provider) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	tool, ok := p.tools[name]
	if !ok {
		return errResult(fmt.Sprintf("unknown tool: %s", name)), nil
	}
	p.logger.Debug("Executing tool %s", name)
	return tool.Exec(ctx, args)
}

// resolve maps a workspace-relative path to an absolute one, rejecting
// any path that escapes the root.
func (p *Provider) resolve(rel string) (string, error) {
	abs, err := filepath.Abs(filepath.Join(p.root, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", rel, err)
	}
	rootAbs, err := filepath.Abs(p.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if abs != rootAbs && !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", rel)
	}
	return abs, nil
}

func okResult(fields map[string]any) map[string]any {
	result := map[string]any{"ok": true}
	for k, v := range fields {
		result[k] = v
	}
	return result
}

func errResult(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intArgOrDefault(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}
