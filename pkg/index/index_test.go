package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestIndex(t *testing.T, files map[string]string) *Index {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	ix := New(root)
	require.NoError(t, ix.Build())
	return ix
}

func TestBuildSkipsNonText(t *testing.T) {
	ix := buildTestIndex(t, map[string]string{
		"main.go":            "package main\n",
		"image.png":          "\x89PNG",
		".git/config":        "[core]\n",
		"node_modules/x.js":  "module.exports = 1\n",
		"docs/readme.md":     "# Readme\n",
		"fake_text.go":       "package x\nvar b = \"\x00\"\n", // NUL byte -> binary
	})

	assert.Equal(t, 2, ix.FileCount())
}

func TestBuildSkipsOversizedFiles(t *testing.T) {
	ix := buildTestIndex(t, map[string]string{
		"big.txt":   strings.Repeat("a", maxFileSize+1),
		"small.txt": "hello\n",
	})
	assert.Equal(t, 1, ix.FileCount())
}

func TestSearchScoringAndOrder(t *testing.T) {
	ix := buildTestIndex(t, map[string]string{
		"a.go": "retry retry retry\n",
		"b.go": "retry once\n",
		"c.go": "nothing here\n",
	})

	results := ix.Search("RETRY", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "a.go", results[0].Path)
	assert.Equal(t, 3, results[0].Score)
	assert.Equal(t, "b.go", results[1].Path)
}

func TestSearchSnippetContext(t *testing.T) {
	ix := buildTestIndex(t, map[string]string{
		"f.go": "line1\nline2\nline3 needle\nline4\nline5\nline6\n",
	})

	results := ix.Search("needle", 1)
	require.Len(t, results, 1)

	snippet := results[0].Snippet
	assert.Contains(t, snippet, "1: line1")
	assert.Contains(t, snippet, "3: line3 needle")
	assert.Contains(t, snippet, "5: line5")
	assert.NotContains(t, snippet, "line6")
}

func TestSearchLimitAndEmptyQuery(t *testing.T) {
	ix := buildTestIndex(t, map[string]string{
		"a.go": "x\n", "b.go": "x\n", "c.go": "x\n",
	})

	assert.Len(t, ix.Search("x", 2), 2)
	assert.Empty(t, ix.Search("  ", 10))
}
