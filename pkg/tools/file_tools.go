package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// pathOnlySchema is shared by tools whose sole parameter is a path.
func pathOnlySchema(desc string) InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"path": {Type: "string", Description: desc},
		},
		Required: []string{"path"},
	}
}

func pathContentSchema(pathDesc string) InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"path":    {Type: "string", Description: pathDesc},
			"content": {Type: "string", Description: "File content"},
		},
		Required: []string{"path", "content"},
	}
}

type getWorkdirTool struct{ p *Provider }

func (t *getWorkdirTool) Name() string { return ToolGetWorkdir }

func (t *getWorkdirTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetWorkdir,
		Description: "Get the absolute path of the workspace root directory.",
		InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
	}
}

func (t *getWorkdirTool) Exec(_ context.Context, _ map[string]any) (any, error) {
	return okResult(map[string]any{"workdir": t.p.root}), nil
}

type listDirTool struct{ p *Provider }

func (t *listDirTool) Name() string { return ToolListDir }

func (t *listDirTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolListDir,
		Description: "List the entries of a directory in the workspace. Directories are suffixed with /.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Relative directory path, empty for the root"},
			},
		},
	}
}

func (t *listDirTool) Exec(_ context.Context, args map[string]any) (any, error) {
	rel, _ := stringArg(args, "path")
	abs, err := t.p.resolve(rel)
	if err != nil {
		return errResult(err.Error()), nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return errResult(fmt.Sprintf("failed to list %s: %v", rel, err)), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return okResult(map[string]any{"entries": names}), nil
}

type readFileTool struct{ p *Provider }

func (t *readFileTool) Name() string { return ToolReadFile }

func (t *readFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReadFile,
		Description: "Read the contents of a file in the workspace.",
		InputSchema: pathOnlySchema("Relative path to the file"),
	}
}

func (t *readFileTool) Exec(_ context.Context, args map[string]any) (any, error) {
	rel, ok := stringArg(args, "path")
	if !ok {
		return errResult("path is required"), nil
	}
	abs, err := t.p.resolve(rel)
	if err != nil {
		return errResult(err.Error()), nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return errResult(fmt.Sprintf("failed to read %s: %v", rel, err)), nil
	}
	return okResult(map[string]any{"content": string(data)}), nil
}

type createFileTool struct{ p *Provider }

func (t *createFileTool) Name() string { return ToolCreateFile }

func (t *createFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCreateFile,
		Description: "Create a new file with the given content. Fails if the file already exists.",
		InputSchema: pathContentSchema("Relative path for the new file"),
	}
}

func (t *createFileTool) Exec(_ context.Context, args map[string]any) (any, error) {
	rel, ok := stringArg(args, "path")
	if !ok {
		return errResult("path is required"), nil
	}
	content, _ := stringArg(args, "content")

	abs, err := t.p.resolve(rel)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if _, err := os.Stat(abs); err == nil {
		return errResult(fmt.Sprintf("file already exists: %s", rel)), nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errResult(fmt.Sprintf("failed to create parent directory: %v", err)), nil
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return errResult(fmt.Sprintf("failed to create %s: %v", rel, err)), nil
	}
	return okResult(map[string]any{"path": rel}), nil
}

type writeFileTool struct{ p *Provider }

func (t *writeFileTool) Name() string { return ToolWriteFile }

func (t *writeFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolWriteFile,
		Description: "Write content to a file, replacing it if it exists.",
		InputSchema: pathContentSchema("Relative path to the file"),
	}
}

func (t *writeFileTool) Exec(_ context.Context, args map[string]any) (any, error) {
	rel, ok := stringArg(args, "path")
	if !ok {
		return errResult("path is required"), nil
	}
	content, _ := stringArg(args, "content")

	abs, err := t.p.resolve(rel)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errResult(fmt.Sprintf("failed to create parent directory: %v", err)), nil
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return errResult(fmt.Sprintf("failed to write %s: %v", rel, err)), nil
	}
	return okResult(map[string]any{"path": rel}), nil
}

type appendFileTool struct{ p *Provider }

func (t *appendFileTool) Name() string { return ToolAppendFile }

func (t *appendFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolAppendFile,
		Description: "Append content to the end of an existing file.",
		InputSchema: pathContentSchema("Relative path to the file"),
	}
}

func (t *appendFileTool) Exec(_ context.Context, args map[string]any) (any, error) {
	rel, ok := stringArg(args, "path")
	if !ok {
		return errResult("path is required"), nil
	}
	content, _ := stringArg(args, "content")

	abs, err := t.p.resolve(rel)
	if err != nil {
		return errResult(err.Error()), nil
	}

	f, err := os.OpenFile(abs, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errResult(fmt.Sprintf("failed to open %s: %v", rel, err)), nil
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return errResult(fmt.Sprintf("failed to append to %s: %v", rel, err)), nil
	}
	return okResult(map[string]any{"path": rel}), nil
}

type replaceInFileTool struct{ p *Provider }

func (t *replaceInFileTool) Name() string { return ToolReplaceInFile }

func (t *replaceInFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReplaceInFile,
		Description: "Replace an exact string in a file. The old string must occur exactly once.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path":       {Type: "string", Description: "Relative path to the file"},
				"old_string": {Type: "string", Description: "Exact text to replace"},
				"new_string": {Type: "string", Description: "Replacement text"},
			},
			Required: []string{"path", "old_string", "new_string"},
		},
	}
}

func (t *replaceInFileTool) Exec(_ context.Context, args map[string]any) (any, error) {
	rel, ok := stringArg(args, "path")
	if !ok {
		return errResult("path is required"), nil
	}
	oldStr, ok := stringArg(args, "old_string")
	if !ok || oldStr == "" {
		return errResult("old_string is required"), nil
	}
	newStr, _ := stringArg(args, "new_string")

	abs, err := t.p.resolve(rel)
	if err != nil {
		return errResult(err.Error()), nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return errResult(fmt.Sprintf("failed to read %s: %v", rel, err)), nil
	}

	content := string(data)
	switch n := strings.Count(content, oldStr); {
	case n == 0:
		return errResult(fmt.Sprintf("old_string not found in %s", rel)), nil
	case n > 1:
		return errResult(fmt.Sprintf("old_string occurs %d times in %s, must be unique", n, rel)), nil
	}

	updated := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return errResult(fmt.Sprintf("failed to write %s: %v", rel, err)), nil
	}
	return okResult(map[string]any{"path": rel}), nil
}

type deleteFileTool struct{ p *Provider }

func (t *deleteFileTool) Name() string { return ToolDeleteFile }

func (t *deleteFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolDeleteFile,
		Description: "Delete a file from the workspace.",
		InputSchema: pathOnlySchema("Relative path to the file"),
	}
}

func (t *deleteFileTool) Exec(_ context.Context, args map[string]any) (any, error) {
	rel, ok := stringArg(args, "path")
	if !ok {
		return errResult("path is required"), nil
	}
	abs, err := t.p.resolve(rel)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if err := os.Remove(abs); err != nil {
		return errResult(fmt.Sprintf("failed to delete %s: %v", rel, err)), nil
	}
	return okResult(map[string]any{"path": rel}), nil
}

type makeDirTool struct{ p *Provider }

func (t *makeDirTool) Name() string { return ToolMakeDir }

func (t *makeDirTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolMakeDir,
		Description: "Create a directory (and parents) in the workspace.",
		InputSchema: pathOnlySchema("Relative directory path"),
	}
}

func (t *makeDirTool) Exec(_ context.Context, args map[string]any) (any, error) {
	rel, ok := stringArg(args, "path")
	if !ok {
		return errResult("path is required"), nil
	}
	abs, err := t.p.resolve(rel)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return errResult(fmt.Sprintf("failed to create directory %s: %v", rel, err)), nil
	}
	return okResult(map[string]any{"path": rel}), nil
}
