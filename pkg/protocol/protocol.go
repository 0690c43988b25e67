// Package protocol implements the comment protocol the agents use to
// exchange structured data through GitHub comments. Each protocol
// comment starts with an HTML marker line and carries its payload in a
// fenced JSON block, so humans see readable markdown while agents parse
// the JSON.
package protocol

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"issueagents/pkg/github"
)

// Comment markers. A marker must be the first line of the comment body
// for the comment to be recognized.
const (
	PlanMarker             = "<!-- planner-agent-plan -->"
	ReviewerFeedbackMarker = "<!-- reviewer-agent-feedback -->"
	CIFixerReportMarker    = "<!-- ci-fixer-agent-report -->"
)

// Review decision statuses.
const (
	StatusApproved         = "APPROVED"
	StatusChangesRequested = "CHANGES_REQUESTED"
)

// CI analysis statuses.
const (
	CIStatusAnalyzed        = "ANALYZED"
	CIStatusNoIssues        = "NO_ISSUES"
	CIStatusUnableToAnalyze = "UNABLE_TO_ANALYZE"
)

// Plan is the planner's output: a short summary and 3-6 concrete steps.
type Plan struct {
	Summary string   `json:"summary"`
	Steps   []string `json:"steps"`
}

// ReviewDecision is the reviewer's verdict on a pull request.
type ReviewDecision struct {
	Status        string   `json:"status"`
	Summary       string   `json:"summary"`
	Issues        []string `json:"issues"`
	Suggestions   []string `json:"suggestions,omitempty"`
	Iteration     int      `json:"iteration"`
	MaxIterations int      `json:"max_iterations"`
}

// Approved reports whether the decision approves the PR.
func (d *ReviewDecision) Approved() bool {
	return d.Status == StatusApproved
}

// CIFixSuggestion is one actionable fix from the CI analysis.
type CIFixSuggestion struct {
	File        string `json:"file"`
	Line        *int   `json:"line,omitempty"`
	Issue       string `json:"issue"`
	Suggestion  string `json:"suggestion"`
	CodeExample string `json:"code_example,omitempty"`
}

// CIAnalysis is the CI-fixer's structured report on failing checks.
type CIAnalysis struct {
	Status        string            `json:"status"`
	Summary       string            `json:"summary"`
	FailedChecks  []string          `json:"failed_checks"`
	RootCauses    []string          `json:"root_causes"`
	Suggestions   []CIFixSuggestion `json:"suggestions"`
	GeneralAdvice []string          `json:"general_advice,omitempty"`
}

var fencedJSONRegex = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// Encode renders a protocol comment: marker first line, optional
// human-readable lines, then the payload in a fenced JSON block.
func Encode(marker string, payload any, humanLines []string) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\n")
	for _, line := range humanLines {
		b.WriteString("\n")
		b.WriteString(line)
	}
	b.WriteString("\n\n```json\n")
	b.Write(data)
	b.WriteString("\n```\n")
	return b.String(), nil
}

// Decode extracts a payload of type T from a comment body. It never
// fails loudly: a missing marker, missing JSON block, or malformed JSON
// all yield (zero, false). The marker must be the first line.
func Decode[T any](marker, body string) (T, bool) {
	var zero T

	trimmed := strings.TrimSpace(body)
	firstLine, _, _ := strings.Cut(trimmed, "\n")
	if strings.TrimSpace(firstLine) != marker {
		return zero, false
	}

	match := fencedJSONRegex.FindStringSubmatch(trimmed)
	if match == nil {
		return zero, false
	}

	var payload T
	if err := json.Unmarshal([]byte(match[1]), &payload); err != nil {
		return zero, false
	}
	return payload, true
}

// FindLatest returns the newest successfully decoded payload among the
// comments, by creation time. Malformed protocol comments are skipped.
func FindLatest[T any](marker string, comments []github.IssueComment) (T, bool) {
	var (
		zero  T
		best  T
		found bool
	)
	var bestAt = [2]int64{0, 0} // unix seconds, comment id (tie-break)

	for i := range comments {
		c := &comments[i]
		payload, ok := Decode[T](marker, c.Body)
		if !ok {
			continue
		}
		at := [2]int64{c.CreatedAt.Unix(), c.ID}
		if !found || at[0] > bestAt[0] || (at[0] == bestAt[0] && at[1] > bestAt[1]) {
			best = payload
			bestAt = at
			found = true
		}
	}
	if !found {
		return zero, false
	}
	return best, true
}
