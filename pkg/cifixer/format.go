package cifixer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"issueagents/pkg/logx"
	"issueagents/pkg/protocol"
)

const instructionsTemplate = `You are an expert CI/CD debugging assistant. Your task is to analyze CI check failures
and provide actionable suggestions for how to fix them.

## Pull Request Information

**Title:** %s

**Description:**
%s

## Changed Files
%s

## CI Check Failures (Summary)
%s

## Your Workflow

Use the available tools to inspect the code related to the failures, then analyze and provide suggestions.

### Recommended Approach

1. Read the annotations above first - they often have structured error info with file paths and line numbers
2. Use read_file and search_codebase to look at the failing code
3. Analyze the errors and provide your suggestions

## Focus Areas

- Syntax errors and typos
- Import/dependency issues
- Type errors (for typed languages)
- Test failures and assertions
- Linting violations
- Build configuration problems

Be specific in your suggestions. Include file paths, line numbers, and code snippets.
`

func buildInstructions(prTitle, prBody, failedInfo, diffContext string) string {
	return fmt.Sprintf(instructionsTemplate, prTitle, prBody, diffContext, failedInfo)
}

func statusEmoji(status string) string {
	switch status {
	case protocol.CIStatusAnalyzed:
		return "🔍"
	case protocol.CIStatusNoIssues:
		return "✅"
	case protocol.CIStatusUnableToAnalyze:
		return "⚠️"
	}
	return "❓"
}

// formatAnalysisComment renders the protocol comment: marker, readable
// report, and the analysis JSON inside a collapsed details block.
func formatAnalysisComment(analysis *protocol.CIAnalysis, prURL string) (string, error) {
	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis: %w", err)
	}

	lines := []string{
		protocol.CIFixerReportMarker,
		fmt.Sprintf("## %s CI Failure Analysis", statusEmoji(analysis.Status)),
		"",
		fmt.Sprintf("**PR:** %s", prURL),
		"",
		"### Summary",
		analysis.Summary,
		"",
	}

	if len(analysis.FailedChecks) > 0 {
		lines = append(lines, "### Failed Checks")
		for _, check := range analysis.FailedChecks {
			lines = append(lines, fmt.Sprintf("- ❌ %s", check))
		}
		lines = append(lines, "")
	}

	if len(analysis.RootCauses) > 0 {
		lines = append(lines, "### Root Causes")
		for _, cause := range analysis.RootCauses {
			lines = append(lines, fmt.Sprintf("- %s", cause))
		}
		lines = append(lines, "")
	}

	if len(analysis.Suggestions) > 0 {
		lines = append(lines, "### Suggested Fixes", "")
		for i, s := range analysis.Suggestions {
			lines = append(lines, fmt.Sprintf("**%d. %s**", i+1, s.File))
			if s.Line != nil {
				lines = append(lines, fmt.Sprintf("   - Line: %d", *s.Line))
			}
			lines = append(lines,
				fmt.Sprintf("   - Issue: %s", s.Issue),
				fmt.Sprintf("   - Fix: %s", s.Suggestion))
			if s.CodeExample != "" {
				lines = append(lines, "   ```", fmt.Sprintf("   %s", s.CodeExample), "   ```")
			}
			lines = append(lines, "")
		}
	}

	if len(analysis.GeneralAdvice) > 0 {
		lines = append(lines, "### General Advice")
		for _, advice := range analysis.GeneralAdvice {
			lines = append(lines, fmt.Sprintf("- 💡 %s", advice))
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		"---",
		"*This analysis was generated automatically by the CI Fixer Agent.*",
		"",
		"<details>",
		"<summary>Machine-readable data</summary>",
		"",
		"```json",
		string(data),
		"```",
		"",
		"</details>",
	)
	return strings.Join(lines, "\n"), nil
}

// writeActionsSummary appends the analysis to the GitHub Actions step
// summary file when running inside a workflow.
func writeActionsSummary(analysis *protocol.CIAnalysis, prURL string, logger *logx.Logger) {
	summaryFile := os.Getenv("GITHUB_STEP_SUMMARY")
	if summaryFile == "" {
		return
	}

	lines := []string{
		fmt.Sprintf("# %s CI Failure Analysis", statusEmoji(analysis.Status)),
		"",
		fmt.Sprintf("**PR:** %s", prURL),
		"",
		"## Summary",
		analysis.Summary,
		"",
	}

	if len(analysis.FailedChecks) > 0 {
		lines = append(lines,
			"## Failed Checks",
			"| Check Name | Status |",
			"|------------|--------|")
		for _, check := range analysis.FailedChecks {
			lines = append(lines, fmt.Sprintf("| %s | ❌ Failed |", check))
		}
		lines = append(lines, "")
	}

	if len(analysis.Suggestions) > 0 {
		lines = append(lines, "## Suggested Fixes", "")
		for i := range analysis.Suggestions {
			s := &analysis.Suggestions[i]
			loc := s.File
			if s.Line != nil {
				loc = fmt.Sprintf("%s:%d", s.File, *s.Line)
			}
			lines = append(lines, fmt.Sprintf("- **%s**: %s", loc, s.Suggestion))
		}
		lines = append(lines, "")
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
	logger.Info("Wrote CI analysis to GitHub Actions summary")
}
