package reviewer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"issueagents/pkg/github"
	"issueagents/pkg/logx"
	"issueagents/pkg/protocol"
)

// maxPatchSize caps the total diff text fed into the review prompt.
const maxPatchSize = 5000

const instructionsTemplate = `You are an expert code reviewer. Analyze the pull request and provide a structured review decision.

## Pull Request Review

**Title:** %s
**Iteration:** %d/%d

### PR Description
%s

%s

### %s

### Code Changes
%s

## Your Task

Review this pull request and determine if it should be approved or if changes are needed.

Consider:
1. Does the implementation match the issue requirements?
2. Are there any bugs, errors, or code quality issues?
3. Are CI checks passing?
4. Is the code well-structured and maintainable?

If this is iteration %d/%d, you should approve with warnings rather than requesting more changes.

Use the search_codebase tool if you need additional context from the repository.

Provide your decision with:
- status: "APPROVED" or "CHANGES_REQUESTED"
- summary: Brief overall assessment
- issues: List of specific issues found (empty if approved)
- suggestions: Optional improvements that don't block approval
`

const issueContextTemplate = `
## Original Issue Requirements
- Issue #%d: %s
- Description: %s

Compare the implementation against these requirements.
`

func buildInstructions(pr *github.PullRequest, issue *github.Issue, diffSummary, ciStatus string, iter, maxIter int) string {
	issueContext := ""
	if issue != nil {
		issueContext = fmt.Sprintf(issueContextTemplate, issue.Number, issue.Title, issue.Body)
	}
	return fmt.Sprintf(instructionsTemplate,
		pr.Title, iter, maxIter, pr.Body, issueContext, ciStatus, diffSummary, maxIter, maxIter)
}

func formatCIStatus(checkRuns []github.CheckRun) string {
	if len(checkRuns) == 0 {
		return "No CI checks found."
	}

	lines := []string{"CI Status:"}
	anyFailing := false
	anyPending := false
	for i := range checkRuns {
		check := &checkRuns[i]
		emoji := "✅"
		state := check.Conclusion
		switch {
		case check.IsFailing():
			emoji = "❌"
			anyFailing = true
		case check.Status != "completed":
			// Queued or in-progress runs have no conclusion yet and must
			// not read as failures.
			emoji = "⏳"
			state = check.Status
			anyPending = true
		}
		lines = append(lines, fmt.Sprintf("  %s %s: %s", emoji, check.Name, state))
	}
	switch {
	case anyFailing:
		lines = append(lines, "\nSome CI checks are failing.")
	case anyPending:
		lines = append(lines, "\nSome CI checks are still running.")
	default:
		lines = append(lines, "\nAll CI checks passed.")
	}
	return strings.Join(lines, "\n")
}

func formatDiffSummary(files []github.PullRequestFile) string {
	if len(files) == 0 {
		return "No files changed."
	}

	lines := []string{fmt.Sprintf("Changed files (%d total):", len(files))}
	totalAdditions, totalDeletions := 0, 0
	for i := range files {
		f := &files[i]
		totalAdditions += f.Additions
		totalDeletions += f.Deletions
		lines = append(lines, fmt.Sprintf("  - %s (+%d/-%d) [%s]", f.Filename, f.Additions, f.Deletions, f.Status))
	}
	lines = append(lines, fmt.Sprintf("\nTotal: +%d/-%d", totalAdditions, totalDeletions))
	lines = append(lines, "\n--- Detailed Changes ---\n")

	currentSize := 0
	for i := range files {
		f := &files[i]
		if f.Patch == "" {
			continue
		}
		patch := fmt.Sprintf("\n### %s\n```diff\n%s\n```\n", f.Filename, f.Patch)
		if currentSize+len(patch) > maxPatchSize {
			lines = append(lines, fmt.Sprintf("\n(Remaining %d files truncated due to size)", len(files)-i))
			break
		}
		lines = append(lines, patch)
		currentSize += len(patch)
	}
	return strings.Join(lines, "\n")
}

// formatReviewComment renders the protocol comment: marker, readable
// report, and the decision JSON inside a collapsed details block.
func formatReviewComment(decision *protocol.ReviewDecision, prURL, branch string) (string, error) {
	data, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal decision: %w", err)
	}

	emoji := "🔄"
	if decision.Approved() {
		emoji = "✅"
	}

	lines := []string{
		protocol.ReviewerFeedbackMarker,
		fmt.Sprintf("## %s AI Reviewer Agent Report", emoji),
		"",
		fmt.Sprintf("**Status:** `%s`", decision.Status),
		fmt.Sprintf("**Iteration:** %d/%d", decision.Iteration, decision.MaxIterations),
		fmt.Sprintf("**PR:** %s", prURL),
		fmt.Sprintf("**Branch:** `%s`", branch),
		"",
		"### Summary",
		decision.Summary,
		"",
	}

	if len(decision.Issues) > 0 {
		lines = append(lines, "### Issues Found")
		for _, issue := range decision.Issues {
			lines = append(lines, fmt.Sprintf("- %s", issue))
		}
		lines = append(lines, "")
	}

	lines = append(lines, "---")
	if decision.Approved() {
		lines = append(lines, "**This PR is ready for human review and merge.**", "")
	} else {
		lines = append(lines, "**Next Steps:** The Coder Agent will automatically attempt to fix these issues.", "")
	}

	lines = append(lines,
		"<details>",
		"<summary>Machine-readable data (for automation)</summary>",
		"",
		"```json",
		string(data),
		"```",
		"",
		"</details>",
	)
	return strings.Join(lines, "\n"), nil
}

// formatReviewBody renders the body of the formal GitHub review.
func formatReviewBody(decision *protocol.ReviewDecision) string {
	lines := []string{
		fmt.Sprintf("## AI Reviewer Agent - %s", decision.Status),
		"",
		fmt.Sprintf("**Iteration:** %d/%d", decision.Iteration, decision.MaxIterations),
		"",
		"### Summary",
		decision.Summary,
		"",
	}

	if len(decision.Issues) > 0 {
		lines = append(lines, "### Issues")
		for _, issue := range decision.Issues {
			lines = append(lines, fmt.Sprintf("- %s", issue))
		}
		lines = append(lines, "")
	}

	if decision.Approved() {
		lines = append(lines, "This PR is ready for merge.")
	} else {
		lines = append(lines, "Please address the issues above before this PR can be approved.")
	}
	return strings.Join(lines, "\n")
}

// writeActionsSummary appends a report to the GitHub Actions step
// summary file when running inside a workflow.
func writeActionsSummary(decision *protocol.ReviewDecision, prURL, branch string, logger *logx.Logger) {
	summaryFile := os.Getenv("GITHUB_STEP_SUMMARY")
	if summaryFile == "" {
		return
	}

	emoji := "🔄"
	if decision.Approved() {
		emoji = "✅"
	}

	lines := []string{
		fmt.Sprintf("# %s AI Reviewer Agent Report", emoji),
		"",
		"| Property | Value |",
		"|----------|-------|",
		fmt.Sprintf("| **Status** | `%s` |", decision.Status),
		fmt.Sprintf("| **Iteration** | %d/%d |", decision.Iteration, decision.MaxIterations),
		fmt.Sprintf("| **PR** | %s |", prURL),
		fmt.Sprintf("| **Branch** | `%s` |", branch),
		"",
		"## Summary",
		"",
		decision.Summary,
		"",
	}

	if len(decision.Issues) > 0 {
		lines = append(lines, "## Issues Found", "")
		for _, issue := range decision.Issues {
			lines = append(lines, fmt.Sprintf("- %s", issue))
		}
		lines = append(lines, "")
	}

	if decision.Approved() {
		lines = append(lines, "**This PR is ready for human review and merge.**")
	} else {
		lines = append(lines, "**Next Steps:** The Coder Agent will automatically attempt to fix these issues.")
	}

	f, err := os.OpenFile(summaryFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn("Failed to write Actions summary: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		logger.Warn("Failed to write Actions summary: %v", err)
		return
	}
	logger.Info("Wrote review summary to GitHub Actions summary")
}

// writeStatusOutput exposes the decision as a GitHub Actions step
// output. Best-effort only.
func writeStatusOutput(status string) {
	outputFile := os.Getenv("GITHUB_OUTPUT")
	if outputFile == "" {
		return
	}
	f, err := os.OpenFile(outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "status=%s\n", status)
}
