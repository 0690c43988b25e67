// Package index builds a lightweight in-memory index of the text files
// in a workspace and answers substring searches with scored snippets.
// It backs the search_codebase tool.
package index

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"issueagents/pkg/logx"
)

// maxFileSize caps indexed files at 500 KB; anything larger is treated
// as generated or vendored.
const maxFileSize = 500 * 1024

var skipDirs = map[string]bool{
	".git":         true,
	".venv":        true,
	"venv":         true,
	"node_modules": true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	".idea":        true,
	".vscode":      true,
	"target":       true,
	".next":        true,
}

var textExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true,
	".tsx": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
	".hpp": true, ".rs": true, ".rb": true, ".php": true, ".sh": true,
	".md": true, ".txt": true, ".json": true, ".yaml": true, ".yml": true,
	".toml": true, ".ini": true, ".cfg": true, ".html": true, ".css": true,
	".sql": true, ".proto": true, ".mod": true, ".sum": true,
}

// Index holds relative path -> content for the indexed files.
type Index struct {
	root   string
	files  map[string]string
	logger *logx.Logger
}

// SearchResult is one file matching a query.
type SearchResult struct {
	Path    string `json:"path"`
	Score   int    `json:"score"`
	Snippet string `json:"snippet"`
}

// New creates an empty index rooted at root. Call Build before searching.
func New(root string) *Index {
	return &Index{
		root:   root,
		files:  make(map[string]string),
		logger: logx.NewLogger("index"),
	}
}

// Build walks the tree and loads indexable files. Unreadable files are
// skipped, not fatal.
func (ix *Index) Build() error {
	err := filepath.WalkDir(ix.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !textExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if bytes.IndexByte(data, 0) >= 0 {
			return nil // binary despite the extension
		}

		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			return nil
		}
		ix.files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index walk failed: %w", err)
	}

	ix.logger.Debug("Indexed %d files under %s", len(ix.files), ix.root)
	return nil
}

// FileCount returns the number of indexed files.
func (ix *Index) FileCount() int {
	return len(ix.files)
}

// Search returns up to limit files containing the query, best first.
// Matching is case-insensitive; the score is the occurrence count.
func (ix *Index) Search(query string, limit int) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	var results []SearchResult
	for path, content := range ix.files {
		lower := strings.ToLower(content)
		count := strings.Count(lower, query)
		if count == 0 {
			continue
		}
		results = append(results, SearchResult{
			Path:    path,
			Score:   count,
			Snippet: snippet(content, lower, query),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// snippet returns the matching line with two lines of context on each
// side, prefixed with 1-based line numbers.
func snippet(content, lowerContent, query string) string {
	offset := strings.Index(lowerContent, query)
	if offset < 0 {
		return ""
	}

	lineNum := strings.Count(content[:offset], "\n")
	lines := strings.Split(content, "\n")

	start := lineNum - 2
	if start < 0 {
		start = 0
	}
	end := lineNum + 3
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%d: %s\n", i+1, lines[i])
	}
	return strings.TrimRight(b.String(), "\n")
}
