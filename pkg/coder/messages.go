package coder

import (
	"fmt"
	"strings"
)

// agentMessage renders the standard coder status comment: an emoji
// header, metadata bullets, an optional summary section, and trailing
// free-form lines.
type agentMessage struct {
	Header        string
	IssueURL      string
	PRURL         string
	Branch        string
	Iteration     int
	MaxIterations int
	Summary       string
	SummaryHeader string
	ExtraLines    []string
}

func (m *agentMessage) String() string {
	lines := []string{fmt.Sprintf("🧩 **%s**", m.Header), ""}

	hasMetadata := false
	if m.IssueURL != "" {
		lines = append(lines, fmt.Sprintf("- Issue: %s", m.IssueURL))
		hasMetadata = true
	}
	if m.PRURL != "" {
		lines = append(lines, fmt.Sprintf("- Pull Request: %s", m.PRURL))
		hasMetadata = true
	}
	if m.Branch != "" {
		lines = append(lines, fmt.Sprintf("- Branch: `%s`", m.Branch))
		hasMetadata = true
	}
	if m.Iteration > 0 {
		lines = append(lines, fmt.Sprintf("- Iterations: %d/%d", m.Iteration, m.MaxIterations))
		hasMetadata = true
	}

	if m.Summary != "" {
		if hasMetadata {
			lines = append(lines, "")
		}
		header := m.SummaryHeader
		if header == "" {
			header = "Summary"
		}
		lines = append(lines, fmt.Sprintf("### %s", header), m.Summary)
	}

	if len(m.ExtraLines) > 0 {
		if hasMetadata || m.Summary != "" {
			lines = append(lines, "")
		}
		lines = append(lines, m.ExtraLines...)
	}

	return strings.Join(lines, "\n")
}
