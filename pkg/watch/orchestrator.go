package watch

import (
	"context"
	"fmt"

	"issueagents/pkg/agent"
	"issueagents/pkg/cifixer"
	"issueagents/pkg/coder"
	"issueagents/pkg/config"
	"issueagents/pkg/github"
	"issueagents/pkg/gitops"
	"issueagents/pkg/logx"
	"issueagents/pkg/planner"
	"issueagents/pkg/protocol"
	"issueagents/pkg/reviewer"
)

// Orchestrator wires the four agents behind the Dispatcher interface.
// It is also the entry point for one-shot agent runs from the CLI.
type Orchestrator struct {
	client   github.Client
	planner  *planner.Planner
	coder    *coder.Coder
	reviewer *reviewer.Reviewer
	fixer    *cifixer.Fixer
	logger   *logx.Logger
}

var _ Dispatcher = (*Orchestrator)(nil)

// NewOrchestrator builds the agents over shared dependencies.
func NewOrchestrator(client github.Client, llm agent.LLMClient, runner gitops.GitRunner, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		client:   client,
		planner:  planner.New(client, llm),
		coder:    coder.New(client, llm, runner, cfg),
		reviewer: reviewer.New(client, llm, cfg),
		fixer:    cifixer.New(client, llm, cfg),
		logger:   logx.NewLogger("orchestrator"),
	}
}

// Plan runs a planner turn for the issue.
func (o *Orchestrator) Plan(ctx context.Context, issueNumber int) error {
	_, err := o.planner.Run(ctx, issueNumber)
	return err
}

// Code runs a plan-mode coder turn for the issue.
func (o *Orchestrator) Code(ctx context.Context, issueNumber int, reviewerFeedback []string) error {
	return o.coder.RunForIssue(ctx, issueNumber, coder.RunOptions{ReviewerFeedback: reviewerFeedback})
}

// CodePR runs a PR-comments coder turn: the working context comes from
// the PR conversation instead of a plan.
func (o *Orchestrator) CodePR(ctx context.Context, prNumber int) error {
	return o.coder.RunForPR(ctx, prNumber, false)
}

// Review runs a reviewer turn for the PR.
func (o *Orchestrator) Review(ctx context.Context, prNumber int) error {
	_, err := o.reviewer.Run(ctx, prNumber)
	return err
}

// FixCI analyzes the PR's failing checks and dispatches a CI-fix coder
// turn when the analysis found anything actionable.
func (o *Orchestrator) FixCI(ctx context.Context, prNumber int) error {
	analysis, err := o.fixer.Run(ctx, prNumber)
	if err != nil {
		return err
	}
	if analysis.Status == protocol.CIStatusNoIssues {
		return nil
	}

	pr, err := o.client.GetPR(ctx, prNumber)
	if err != nil {
		return fmt.Errorf("fetching PR #%d: %w", prNumber, err)
	}
	issueNumber := reviewer.ExtractIssueNumber(pr.Body)
	if issueNumber == 0 {
		o.logger.Warn("CI analysis for PR #%d found issues but no linked issue; skipping fix turn", prNumber)
		return nil
	}
	return o.coder.RunForIssue(ctx, issueNumber, coder.RunOptions{
		PRNumber:  prNumber,
		CIFixMode: true,
	})
}
