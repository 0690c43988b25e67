package coder

import (
	"fmt"
	"strings"

	"issueagents/pkg/protocol"
)

const baseInstructions = `You are an expert coding agent. Your task is to implement code changes based on a plan.

## Issue
Title: %s
Body: %s
%s## Plan
Summary: %s
Steps:
%s
%s%s## Instructions
1. First, explore the codebase using list_dir and read_file to understand the structure.
2. Use search_codebase to find relevant code related to the issue.
3. Implement the changes step by step using write_file, create_file, replace_in_file, etc.
4. When you have completed ALL steps, call mark_complete with a summary of what you did.

## Rules
- Always read a file before modifying it.
- Make minimal, focused changes.
- Follow existing code style and conventions.
- Do not create unnecessary files.
- If you cannot complete a step, explain why in your mark_complete summary.
- If there is CI or reviewer feedback, address it FIRST before other changes.
`

const ciFixModeContext = `
## Mode: CI Fix
You are running in CI fix mode. Your primary goal is to fix CI failures.
After fixing, the CI will run again automatically.
`

const ciFeedbackSection = `
## CI Failure Analysis (CRITICAL - Fix these first!)
The CI checks have failed. The CI Fixer agent identified the following issues:
%s

You MUST fix these CI issues before the code can be merged.
Focus on:
- Syntax errors and typos
- Import/dependency issues
- Type errors
- Linting violations
- Test failures

`

const reviewerFeedbackSection = `
## Reviewer Feedback (PRIORITY - Address these issues!)
This is iteration %d/%d. The reviewer found the following issues:
%s

You MUST address these issues before proceeding with any other changes.
`

const iterationNote = `
## Iteration Note
This is iteration %d/%d of the development cycle.
Previous attempts had issues that need to be fixed.
`

const prCommentsInstructions = `You are an expert coding agent. Your task is to address feedback on an existing pull request.

## Pull Request
Title: %s
Body: %s
Branch: %s
%s## Comment History
%s
%s## Instructions
1. Read through the comment history to understand what feedback needs addressing.
2. Explore the codebase using list_dir and read_file to understand the current state.
3. Make the changes required by the feedback using write_file, create_file, replace_in_file, etc.
4. When all feedback is addressed, call mark_complete with a summary of what you did.

## Rules
- Always read a file before modifying it.
- Make minimal, focused changes.
- Follow existing code style and conventions.
- If there is CI or reviewer feedback, address it FIRST before other changes.
`

// promptInputs collects everything that shapes a coder prompt.
type promptInputs struct {
	Iteration        int
	MaxIterations    int
	ReviewerFeedback []string
	CIFeedback       []string
	CIFixMode        bool
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("  - %s", item)
	}
	return strings.Join(lines, "\n")
}

func (in *promptInputs) feedbackSections() string {
	var b strings.Builder
	if in.CIFixMode && len(in.CIFeedback) > 0 {
		b.WriteString(fmt.Sprintf(ciFeedbackSection, bulletList(in.CIFeedback)))
	}
	if len(in.ReviewerFeedback) > 0 {
		b.WriteString(fmt.Sprintf(reviewerFeedbackSection,
			in.Iteration, in.MaxIterations, bulletList(in.ReviewerFeedback)))
	}
	return b.String()
}

func (in *promptInputs) modeContext() string {
	if in.CIFixMode {
		return ciFixModeContext
	}
	return ""
}

func (in *promptInputs) iterationNote() string {
	if in.Iteration > 1 {
		return fmt.Sprintf(iterationNote, in.Iteration, in.MaxIterations)
	}
	return ""
}

// buildInstructions renders the plan-mode system prompt.
func buildInstructions(issueTitle, issueBody string, plan protocol.Plan, in *promptInputs) string {
	steps := make([]string, len(plan.Steps))
	for i, step := range plan.Steps {
		steps[i] = fmt.Sprintf("  %d. %s", i+1, step)
	}

	return fmt.Sprintf(baseInstructions,
		issueTitle,
		issueBody,
		in.modeContext(),
		plan.Summary,
		strings.Join(steps, "\n"),
		in.iterationNote(),
		in.feedbackSections(),
	)
}

// CommentEntry is one PR conversation item fed into the PR-comments prompt.
type CommentEntry struct {
	Author    string
	Body      string
	CreatedAt string
}

// buildPRCommentsInstructions renders the system prompt for a turn that
// works from a PR's conversation instead of a plan.
func buildPRCommentsInstructions(prTitle, prBody, branch string, history []CommentEntry, in *promptInputs) string {
	var hb strings.Builder
	for _, entry := range history {
		hb.WriteString(fmt.Sprintf("[%s] %s:\n%s\n\n", entry.CreatedAt, entry.Author, entry.Body))
	}
	historyText := strings.TrimSpace(hb.String())
	if historyText == "" {
		historyText = "(no comments)"
	}

	return fmt.Sprintf(prCommentsInstructions,
		prTitle,
		prBody,
		branch,
		in.modeContext(),
		historyText,
		in.feedbackSections(),
	)
}
