package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) (*Provider, string) {
	t.Helper()
	root := t.TempDir()
	return NewProvider(root, nil), root
}

func execTool(t *testing.T, p *Provider, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := p.Execute(context.Background(), name, args)
	require.NoError(t, err)
	m, ok := res.(map[string]any)
	require.True(t, ok, "expected map result from %s", name)
	return m
}

func TestDefinitionsCoverFullSurface(t *testing.T) {
	p, _ := newTestProvider(t)
	defs := p.Definitions()

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	assert.Equal(t, []string{
		ToolGetWorkdir, ToolListDir, ToolReadFile, ToolCreateFile,
		ToolWriteFile, ToolAppendFile, ToolReplaceInFile, ToolDeleteFile,
		ToolMakeDir, ToolSearchCodebase, ToolMarkComplete,
	}, names)
}

func TestPathConfinement(t *testing.T) {
	p, root := newTestProvider(t)

	// Plant a file outside the workspace to prove it is unreachable.
	outside := filepath.Join(filepath.Dir(root), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	defer os.Remove(outside)

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"read escape", ToolReadFile, map[string]any{"path": "../outside.txt"}},
		{"write escape", ToolWriteFile, map[string]any{"path": "../evil.txt", "content": "x"}},
		{"delete escape", ToolDeleteFile, map[string]any{"path": "../outside.txt"}},
		{"list escape", ToolListDir, map[string]any{"path": ".."}},
		{"absolute-ish escape", ToolReadFile, map[string]any{"path": "a/../../outside.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execTool(t, p, tt.tool, tt.args)
			assert.Equal(t, false, res["ok"])
			assert.Contains(t, res["error"], "escapes workspace")
		})
	}
}

func TestFileLifecycle(t *testing.T) {
	p, _ := newTestProvider(t)

	res := execTool(t, p, ToolCreateFile, map[string]any{"path": "src/main.go", "content": "package main\n"})
	assert.Equal(t, true, res["ok"])

	// Creating again fails.
	res = execTool(t, p, ToolCreateFile, map[string]any{"path": "src/main.go", "content": "x"})
	assert.Equal(t, false, res["ok"])

	res = execTool(t, p, ToolAppendFile, map[string]any{"path": "src/main.go", "content": "func main() {}\n"})
	assert.Equal(t, true, res["ok"])

	res = execTool(t, p, ToolReadFile, map[string]any{"path": "src/main.go"})
	require.Equal(t, true, res["ok"])
	assert.Equal(t, "package main\nfunc main() {}\n", res["content"])

	res = execTool(t, p, ToolListDir, map[string]any{"path": "src"})
	require.Equal(t, true, res["ok"])
	assert.Equal(t, []string{"main.go"}, res["entries"])

	res = execTool(t, p, ToolDeleteFile, map[string]any{"path": "src/main.go"})
	assert.Equal(t, true, res["ok"])

	res = execTool(t, p, ToolReadFile, map[string]any{"path": "src/main.go"})
	assert.Equal(t, false, res["ok"])
}

func TestReplaceInFileUniqueness(t *testing.T) {
	p, _ := newTestProvider(t)
	execTool(t, p, ToolWriteFile, map[string]any{"path": "f.txt", "content": "aaa bbb aaa"})

	res := execTool(t, p, ToolReplaceInFile, map[string]any{
		"path": "f.txt", "old_string": "aaa", "new_string": "ccc",
	})
	assert.Equal(t, false, res["ok"]) // occurs twice

	res = execTool(t, p, ToolReplaceInFile, map[string]any{
		"path": "f.txt", "old_string": "bbb", "new_string": "ddd",
	})
	assert.Equal(t, true, res["ok"])

	res = execTool(t, p, ToolReadFile, map[string]any{"path": "f.txt"})
	assert.Equal(t, "aaa ddd aaa", res["content"])

	res = execTool(t, p, ToolReplaceInFile, map[string]any{
		"path": "f.txt", "old_string": "zzz", "new_string": "x",
	})
	assert.Equal(t, false, res["ok"]) // not found
}

func TestMarkCompleteResult(t *testing.T) {
	p, _ := newTestProvider(t)
	res, err := p.Execute(context.Background(), ToolMarkComplete, map[string]any{"summary": "did the thing"})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETE: did the thing", res)
}

func TestUnknownToolIsRecoverable(t *testing.T) {
	p, _ := newTestProvider(t)
	res := execTool(t, p, "launch_rockets", nil)
	assert.Equal(t, false, res["ok"])
}

func TestGetWorkdir(t *testing.T) {
	p, root := newTestProvider(t)
	res := execTool(t, p, ToolGetWorkdir, nil)
	assert.Equal(t, filepath.Clean(root), res["workdir"])
}
