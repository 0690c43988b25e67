// Package planner generates implementation plans for GitHub issues and
// posts them as machine-readable comments for the downstream agents.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"issueagents/pkg/agent"
	"issueagents/pkg/github"
	"issueagents/pkg/logx"
	"issueagents/pkg/metrics"
	"issueagents/pkg/protocol"
)

const systemInstructions = `You are a planning assistant for a multi-agent GitHub workflow.

Your task is to analyze GitHub issues and create implementation plans.

Guidelines:
- Create a brief plan with 3-6 concrete steps
- Each step should be actionable and specific
- Focus on what needs to be done, not how long it will take
- Consider the full development cycle: analysis, implementation, testing, PR

Return a structured plan with:
- summary: A brief description of what will be implemented
- steps: An array of 3-6 specific implementation steps`

const promptTemplate = `Create a brief implementation plan (3-6 steps) for the following issue.

Issue title:
%s

Issue body:
%s`

// Planner creates and publishes plans for issues.
type Planner struct {
	client github.Client
	llm    agent.LLMClient
	logger *logx.Logger
}

// New constructs a Planner.
func New(client github.Client, llm agent.LLMClient) *Planner {
	return &Planner{
		client: client,
		llm:    llm,
		logger: logx.NewLogger("planner"),
	}
}

// BuildPlan asks the model for a structured plan. When the request fails
// after retries, a generic fallback plan is returned so the workflow can
// continue instead of stalling the issue.
func (p *Planner) BuildPlan(ctx context.Context, issueTitle, issueBody string) protocol.Plan {
	req := agent.CompletionRequest{
		Messages: []agent.CompletionMessage{
			agent.NewSystemMessage(systemInstructions),
			agent.NewUserMessage(fmt.Sprintf(promptTemplate, issueTitle, issueBody)),
		},
		MaxTokens:   2048,
		Temperature: agent.TemperatureDefault,
	}

	var plan protocol.Plan
	if err := agent.CompleteJSON(ctx, p.llm, req, &plan); err != nil {
		p.logger.Error("Failed to generate plan: %v", err)
		return fallbackPlan(issueTitle)
	}
	if plan.Summary == "" || len(plan.Steps) == 0 {
		p.logger.Warn("Model returned an incomplete plan, using fallback")
		return fallbackPlan(issueTitle)
	}
	return plan
}

func fallbackPlan(issueTitle string) protocol.Plan {
	summary := "Plan generation failed; manual investigation required"
	if title := strings.TrimSpace(issueTitle); title != "" {
		summary = fmt.Sprintf("%s: %s", summary, title)
	}
	return protocol.Plan{
		Summary: summary,
		Steps: []string{
			"Analyze requirements from the issue description and repo context.",
			"Implement the first step and validate locally.",
			"Iterate remaining steps with separate sessions if needed.",
			"Run checks/tests and open a pull request.",
		},
	}
}

// Run generates a plan for the issue and posts it as a marker comment.
func (p *Planner) Run(ctx context.Context, issueNumber int) (protocol.Plan, error) {
	started := time.Now()
	issue, err := p.client.GetIssue(ctx, issueNumber)
	if err != nil {
		metrics.ObserveTurn("planner", "error", time.Since(started))
		return protocol.Plan{}, logx.Wrap(err, "failed to load issue")
	}

	plan := p.BuildPlan(ctx, issue.Title, issue.Body)

	body, err := renderPlanComment(issue, plan)
	if err != nil {
		metrics.ObserveTurn("planner", "error", time.Since(started))
		return protocol.Plan{}, logx.Wrap(err, "failed to render plan comment")
	}
	if err := p.client.CommentOnIssue(ctx, issue.Number, body); err != nil {
		metrics.ObserveTurn("planner", "error", time.Since(started))
		return protocol.Plan{}, logx.Wrap(err, "failed to post plan comment")
	}

	p.logger.Info("Posted plan for issue #%d: %s", issue.Number, plan.Summary)
	metrics.ObserveTurn("planner", "success", time.Since(started))
	return plan, nil
}

func renderPlanComment(issue *github.Issue, plan protocol.Plan) (string, error) {
	lines := []string{
		"🧭 **Planner Agent created a plan.**",
		"",
		fmt.Sprintf("- Issue: %s", issue.URL),
		fmt.Sprintf("- Summary: %s", plan.Summary),
		"",
		"Planned steps:",
	}
	for i, step := range plan.Steps {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, step))
	}
	lines = append(lines, "", "Plan data (for other agents):")
	body, err := protocol.Encode(protocol.PlanMarker, plan, lines)
	if err != nil {
		return "", err
	}
	return body + "\n\nThe Coder Agent will automatically implement this plan.", nil
}
