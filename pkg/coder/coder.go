// Package coder implements the coding agent: it turns a plan (or PR
// feedback) into committed, pushed changes on a coder-agent branch and
// opens or updates the pull request for the issue.
package coder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"issueagents/pkg/agent"
	"issueagents/pkg/config"
	"issueagents/pkg/contextmgr"
	"issueagents/pkg/github"
	"issueagents/pkg/gitops"
	"issueagents/pkg/index"
	"issueagents/pkg/iteration"
	"issueagents/pkg/logx"
	"issueagents/pkg/metrics"
	"issueagents/pkg/protocol"
	"issueagents/pkg/tools"
)

const (
	planModePrompt = "Please implement the changes according to the plan. Start by exploring the codebase structure."
	prModePrompt   = "Please address the feedback from the PR comments. Start by exploring the codebase to understand the current state."
)

// RunOptions tunes a coder turn.
type RunOptions struct {
	// PRNumber is the PR the turn relates to, when known. Required in
	// CI-fix mode, where the PR head ref is the working branch.
	PRNumber int

	// CIFixMode prioritizes the latest CI-fixer report as feedback and
	// forbids falling back to a fresh branch.
	CIFixMode bool

	// ReviewerFeedback carries feedback items the dispatcher already
	// extracted. When empty, the turn loads the latest reviewer
	// decision from the PR comments itself.
	ReviewerFeedback []string
}

// Coder drives coding turns.
type Coder struct {
	client  github.Client
	llm     agent.LLMClient
	runner  gitops.GitRunner
	tracker *iteration.Tracker
	cfg     *config.Config
	logger  *logx.Logger
}

// New constructs a Coder.
func New(client github.Client, llm agent.LLMClient, runner gitops.GitRunner, cfg *config.Config) *Coder {
	return &Coder{
		client:  client,
		llm:     llm,
		runner:  runner,
		tracker: iteration.NewTracker(client),
		cfg:     cfg,
		logger:  logx.NewLogger("coder"),
	}
}

// RunForIssue executes a plan-mode turn: load the latest plan from the
// issue, enforce the iteration ceiling, then clone, implement, commit,
// push, and open or update the PR. Outcomes that halt the turn early
// (no plan, ceiling reached) are reported on the issue and are not
// errors.
func (c *Coder) RunForIssue(ctx context.Context, issueNumber int, opts RunOptions) error {
	started := time.Now()
	outcome := "error"
	defer func() { metrics.ObserveTurn("coder", outcome, time.Since(started)) }()

	issue, err := c.client.GetIssue(ctx, issueNumber)
	if err != nil {
		return logx.Wrap(err, "failed to load issue")
	}

	comments, err := c.client.ListIssueComments(ctx, issueNumber)
	if err != nil {
		return logx.Wrap(err, "failed to list issue comments")
	}

	plan, ok := protocol.FindLatest[protocol.Plan](protocol.PlanMarker, comments)
	if !ok {
		c.postStatus(ctx, issueNumber, &agentMessage{
			Header:     "Coder Agent could not find a plan.",
			IssueURL:   issue.URL,
			ExtraLines: []string{"Please ensure the Planner Agent has created a plan first."},
		})
		outcome = "no_plan"
		return nil
	}

	current, err := c.tracker.Get(ctx, issueNumber)
	if err != nil {
		return err
	}
	if current >= c.cfg.MaxDevIterations {
		c.postStatus(ctx, issueNumber, &agentMessage{
			Header:        "Coder Agent: Maximum iterations reached.",
			IssueURL:      issue.URL,
			Iteration:     current,
			MaxIterations: c.cfg.MaxDevIterations,
			ExtraLines: []string{
				"The maximum number of development iterations has been reached.",
				"Please review the existing PR manually or close the issue.",
			},
		})
		outcome = "max_iterations"
		return nil
	}

	next, err := c.tracker.Increment(ctx, issueNumber)
	if err != nil {
		return err
	}
	c.logger.Info("Starting iteration %d/%d for issue #%d", next, c.cfg.MaxDevIterations, issueNumber)

	in := &promptInputs{
		Iteration:        next,
		MaxIterations:    c.cfg.MaxDevIterations,
		ReviewerFeedback: opts.ReviewerFeedback,
		CIFixMode:        opts.CIFixMode,
	}
	if opts.PRNumber > 0 {
		prComments, err := c.client.ListPRComments(ctx, opts.PRNumber)
		if err != nil {
			c.logger.Warn("Failed to list PR #%d comments: %v", opts.PRNumber, err)
		} else {
			if opts.CIFixMode {
				in.CIFeedback = LatestCIFeedback(prComments)
			}
			if len(in.ReviewerFeedback) == 0 {
				in.ReviewerFeedback = LatestReviewerFeedback(prComments)
			}
		}
	}

	ciFixPR := 0
	if opts.CIFixMode {
		ciFixPR = opts.PRNumber
	}
	branch, err := ResolveBranch(ctx, c.client, issueNumber, ciFixPR)
	if err != nil {
		return err
	}

	c.postStartStatus(ctx, issueNumber, branch, next)

	err = gitops.WithWorkspace(c.runner, "coder_agent_", func(w *gitops.Workspace) error {
		if err := w.Clone(ctx, c.client.CloneURL(), c.cfg.Token, ""); err != nil {
			c.postStatus(ctx, issueNumber, &agentMessage{
				Header:     "Coder Agent failed to clone repository.",
				ExtraLines: []string{"Please check the logs."},
			})
			return err
		}

		if branch.IsUpdate {
			if err := w.CheckoutExisting(ctx, branch.Name); err != nil {
				if opts.CIFixMode {
					c.postStatus(ctx, issueNumber, &agentMessage{
						Header:     fmt.Sprintf("Coder Agent failed to checkout existing branch `%s`.", branch.Name),
						ExtraLines: []string{"Cannot proceed with CI fix mode without the existing PR branch."},
					})
					return err
				}
				// Stale PR branch; start over on a fresh one.
				c.logger.Warn("Checkout of %s failed, creating a new branch: %v", branch.Name, err)
				branch = BranchInfo{Name: NewBranchName(issueNumber)}
				if err := w.CreateBranch(ctx, branch.Name); err != nil {
					c.postStatus(ctx, issueNumber, &agentMessage{
						Header: fmt.Sprintf("Coder Agent failed to create branch `%s`.", branch.Name),
					})
					return err
				}
			}
		} else {
			if err := w.CreateBranch(ctx, branch.Name); err != nil {
				c.postStatus(ctx, issueNumber, &agentMessage{
					Header: fmt.Sprintf("Coder Agent failed to create branch `%s`.", branch.Name),
				})
				return err
			}
		}

		system := buildInstructions(issue.Title, issue.Body, plan, in)
		summary := c.runAgent(ctx, w.RepoDir(), system, planModePrompt)

		message := gitops.CommitMessage(issue.Number, issue.Title, branch.IsUpdate) + "\n\n" + summary
		hasChanges, err := gitops.CommitAll(ctx, c.runner, w.RepoDir(), message)
		if err != nil {
			return err
		}
		if !hasChanges {
			c.postStatus(ctx, issueNumber, &agentMessage{
				Header:   fmt.Sprintf("Coder Agent completed but made no changes (iteration %d/%d).", next, c.cfg.MaxDevIterations),
				IssueURL: issue.URL,
				Summary:  summary,
			})
			outcome = "no_changes"
			return nil
		}

		if err := gitops.Push(ctx, c.runner, w.RepoDir(), branch.Name); err != nil {
			c.postStatus(ctx, issueNumber, &agentMessage{
				Header: "Coder Agent failed to push changes.",
				Branch: branch.Name,
			})
			return err
		}

		if branch.IsUpdate {
			c.postStatus(ctx, issueNumber, &agentMessage{
				Header:        fmt.Sprintf("Coder Agent pushed fixes (iteration %d/%d).", next, c.cfg.MaxDevIterations),
				IssueURL:      issue.URL,
				Branch:        branch.Name,
				Summary:       summary,
				SummaryHeader: "Changes Made",
				ExtraLines:    []string{"The PR has been updated. Reviewer will analyze the changes."},
			})
			outcome = "pushed"
			return nil
		}

		pr, err := c.client.CreatePR(ctx, github.PRCreateOptions{
			Title: fmt.Sprintf("[Coder Agent] %s (#%d)", issue.Title, issue.Number),
			Body:  prBody(issue.Number, plan, next, c.cfg.MaxDevIterations, summary),
			Head:  branch.Name,
		})
		if err != nil {
			c.logger.Error("Failed to create PR: %v", err)
			c.postStatus(ctx, issueNumber, &agentMessage{
				Header:     "Coder Agent pushed changes but failed to create PR.",
				Branch:     branch.Name,
				ExtraLines: []string{fmt.Sprintf("Error: %v", err)},
			})
			return err
		}

		c.postStatus(ctx, issueNumber, &agentMessage{
			Header:   fmt.Sprintf("Coder Agent completed implementation (iteration %d/%d).", next, c.cfg.MaxDevIterations),
			IssueURL: issue.URL,
			PRURL:    pr.URL,
			Summary:  summary,
		})
		outcome = "pr_created"
		return nil
	})
	return err
}

// RunForPR executes a PR-comments-mode turn: the working context is
// rebuilt from the PR conversation instead of a plan, and changes land
// directly on the existing PR branch.
func (c *Coder) RunForPR(ctx context.Context, prNumber int, ciFixMode bool) error {
	started := time.Now()
	outcome := "error"
	defer func() { metrics.ObserveTurn("coder", outcome, time.Since(started)) }()

	pr, err := c.client.GetPR(ctx, prNumber)
	if err != nil {
		return logx.Wrap(err, "failed to load PR")
	}

	prComments, err := c.client.ListPRComments(ctx, prNumber)
	if err != nil {
		return logx.Wrap(err, "failed to list PR comments")
	}

	sorted := append([]github.IssueComment{}, prComments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
	history := make([]CommentEntry, 0, len(sorted))
	for i := range sorted {
		history = append(history, CommentEntry{
			Author:    sorted[i].User.Login,
			Body:      sorted[i].Body,
			CreatedAt: sorted[i].CreatedAt.Format(time.RFC3339),
		})
	}

	in := &promptInputs{
		Iteration:     1,
		MaxIterations: c.cfg.MaxDevIterations,
		CIFixMode:     ciFixMode,
	}
	if ciFixMode {
		in.CIFeedback = LatestCIFeedback(prComments)
		if len(in.CIFeedback) > 0 {
			c.logger.Info("Loaded %d CI feedback items from PR #%d", len(in.CIFeedback), prNumber)
		}
	}

	branch := pr.HeadRefName
	c.logger.Info("Coder Agent working on PR #%d, branch %s (PR comments mode)", prNumber, branch)

	err = gitops.WithWorkspace(c.runner, "coder_agent_pr_", func(w *gitops.Workspace) error {
		if err := w.Clone(ctx, c.client.CloneURL(), c.cfg.Token, branch); err != nil {
			return err
		}

		system := buildPRCommentsInstructions(pr.Title, pr.Body, branch, history, in)
		summary := c.runAgent(ctx, w.RepoDir(), system, prModePrompt)

		message := fmt.Sprintf("fix: address PR feedback for #%d\n\n%s", prNumber, summary)
		hasChanges, err := gitops.CommitAll(ctx, c.runner, w.RepoDir(), message)
		if err != nil {
			return err
		}
		if !hasChanges {
			c.logger.Info("No changes to commit for PR #%d", prNumber)
			outcome = "no_changes"
			return nil
		}

		if err := gitops.Push(ctx, c.runner, w.RepoDir(), branch); err != nil {
			return err
		}
		c.logger.Info("Pushed changes to PR #%d branch %s", prNumber, branch)
		outcome = "pushed"
		return nil
	})
	return err
}

// runAgent builds the code index and tool surface for the workspace and
// runs the tool loop. Agent failures degrade to an explanatory summary
// so the turn still reports something useful.
func (c *Coder) runAgent(ctx context.Context, repoDir, system, initialPrompt string) string {
	ix := index.New(repoDir)
	if err := ix.Build(); err != nil {
		c.logger.Warn("Code index build failed, search will be empty: %v", err)
	} else {
		c.logger.Debug("Indexed %d files", ix.FileCount())
	}

	loop := agent.NewToolLoop(c.llm, c.logger)
	result, err := loop.Run(ctx, &agent.LoopConfig{
		Context:       contextmgr.NewContextManager(),
		Provider:      tools.NewProvider(repoDir, ix),
		System:        system,
		InitialPrompt: initialPrompt,
		MaxIterations: c.cfg.MaxAgentIterations,
		MaxTokens:     c.cfg.LLM.MaxTokens,
		Temperature:   agent.TemperatureDefault,
	})
	if err != nil {
		c.logger.Error("Coder agent failed: %v", err)
		return fmt.Sprintf("Agent execution failed: %v", err)
	}
	if result.Summary == "" {
		return "Agent completed without explicit summary."
	}
	return result.Summary
}

func (c *Coder) postStartStatus(ctx context.Context, issueNumber int, branch BranchInfo, iter int) {
	iterMsg := fmt.Sprintf(" (iteration %d/%d)", iter, c.cfg.MaxDevIterations)
	if branch.IsUpdate {
		c.postStatus(ctx, issueNumber, &agentMessage{
			Header:     fmt.Sprintf("Coder Agent continuing implementation%s...", iterMsg),
			ExtraLines: []string{fmt.Sprintf("Updating existing branch `%s`...", branch.Name)},
		})
		return
	}
	c.postStatus(ctx, issueNumber, &agentMessage{
		Header:     fmt.Sprintf("Coder Agent starting implementation%s...", iterMsg),
		ExtraLines: []string{"Cloning repository..."},
	})
}

// postStatus posts a status comment. Failures are logged only; a lost
// status comment must not abort a turn mid-pipeline.
func (c *Coder) postStatus(ctx context.Context, issueNumber int, msg *agentMessage) {
	if err := c.client.CommentOnIssue(ctx, issueNumber, msg.String()); err != nil {
		c.logger.Warn("Failed to post status comment on issue #%d: %v", issueNumber, err)
	}
}

func prBody(issueNumber int, plan protocol.Plan, iter, maxIter int, summary string) string {
	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		planJSON = []byte("{}")
	}
	return fmt.Sprintf(`## Summary

This PR was automatically generated by the Coder Agent to address #%d.

Closes #%d

**Iteration:** %d/%d

### Implementation Summary
%s

### Plan Followed
`+"```json\n%s\n```"+`

---
*Generated by Coder Agent*
`, issueNumber, issueNumber, iter, maxIter, summary, planJSON)
}
