package coder

import (
	"fmt"

	"issueagents/pkg/github"
	"issueagents/pkg/protocol"
)

// LatestReviewerFeedback flattens the newest reviewer decision in the
// comments into actionable feedback items for the prompt.
func LatestReviewerFeedback(comments []github.IssueComment) []string {
	decision, ok := protocol.FindLatest[protocol.ReviewDecision](protocol.ReviewerFeedbackMarker, comments)
	if !ok {
		return nil
	}
	items := append([]string{}, decision.Issues...)
	for _, s := range decision.Suggestions {
		items = append(items, fmt.Sprintf("Suggestion: %s", s))
	}
	return items
}

// LatestCIFeedback flattens the newest CI-fixer report in the comments
// into actionable feedback items for the prompt.
func LatestCIFeedback(comments []github.IssueComment) []string {
	analysis, ok := protocol.FindLatest[protocol.CIAnalysis](protocol.CIFixerReportMarker, comments)
	if !ok {
		return nil
	}

	var items []string
	for _, s := range analysis.Suggestions {
		location := s.File
		if s.Line != nil {
			location = fmt.Sprintf("%s:%d", s.File, *s.Line)
		}
		if location != "" {
			items = append(items, fmt.Sprintf("%s: %s (%s)", location, s.Issue, s.Suggestion))
		} else {
			items = append(items, fmt.Sprintf("%s (%s)", s.Issue, s.Suggestion))
		}
	}
	for _, cause := range analysis.RootCauses {
		items = append(items, fmt.Sprintf("Root cause: %s", cause))
	}
	items = append(items, analysis.GeneralAdvice...)
	return items
}
