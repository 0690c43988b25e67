// Package reviewer implements the review agent: it assesses a pull
// request against its linked issue, decides APPROVED or
// CHANGES_REQUESTED, and publishes the decision both as a protocol
// comment and as a formal GitHub review.
package reviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"issueagents/pkg/agent"
	"issueagents/pkg/config"
	"issueagents/pkg/github"
	"issueagents/pkg/index"
	"issueagents/pkg/iteration"
	"issueagents/pkg/logx"
	"issueagents/pkg/metrics"
	"issueagents/pkg/protocol"
	"issueagents/pkg/tools"
)

// maxReviewTurns bounds the LLM conversation for one review, including
// tool-use turns.
const maxReviewTurns = 10

// issueLinkPatterns extract the linked issue number from a PR body,
// tried in order of specificity.
var issueLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:closes|fixes|resolves|addresses|for)\s*#(\d+)`),
	regexp.MustCompile(`(?i)issue[:\s]*#?(\d+)`),
	regexp.MustCompile(`#(\d+)`),
}

// ExtractIssueNumber finds the issue a PR body links to. Returns 0 when
// no pattern matches.
func ExtractIssueNumber(prBody string) int {
	for _, pattern := range issueLinkPatterns {
		match := pattern.FindStringSubmatch(prBody)
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

// reviewerToolNames is the read-only tool subset the reviewer may use.
var reviewerToolNames = map[string]bool{
	tools.ToolGetWorkdir:     true,
	tools.ToolListDir:        true,
	tools.ToolReadFile:       true,
	tools.ToolSearchCodebase: true,
}

// Reviewer drives review turns.
type Reviewer struct {
	client  github.Client
	llm     agent.LLMClient
	tracker *iteration.Tracker
	cfg     *config.Config
	logger  *logx.Logger

	// workspaceRoot is where the PR's code is checked out, used for the
	// search tools. Defaults to GITHUB_WORKSPACE or the current
	// directory.
	workspaceRoot string
}

// New constructs a Reviewer.
func New(client github.Client, llm agent.LLMClient, cfg *config.Config) *Reviewer {
	root := os.Getenv("GITHUB_WORKSPACE")
	if root == "" {
		root, _ = os.Getwd()
	}
	return &Reviewer{
		client:        client,
		llm:           llm,
		tracker:       iteration.NewTracker(client),
		cfg:           cfg,
		logger:        logx.NewLogger("reviewer"),
		workspaceRoot: root,
	}
}

// WithWorkspaceRoot overrides the code search root, mainly for tests.
func (r *Reviewer) WithWorkspaceRoot(root string) *Reviewer {
	r.workspaceRoot = root
	return r
}

// Run reviews a PR and publishes the decision. The returned decision
// always carries iteration metadata.
func (r *Reviewer) Run(ctx context.Context, prNumber int) (*protocol.ReviewDecision, error) {
	started := time.Now()
	outcome := "error"
	defer func() { metrics.ObserveTurn("reviewer", outcome, time.Since(started)) }()

	r.logger.Info("Starting review for PR #%d", prNumber)

	pr, err := r.client.GetPR(ctx, prNumber)
	if err != nil {
		return nil, logx.Wrap(err, "failed to load PR")
	}

	// Diff and CI state degrade gracefully; a review with partial
	// context beats no review.
	diffSummary := "Could not fetch diff."
	if files, err := r.client.GetPRFiles(ctx, prNumber); err != nil {
		r.logger.Warn("Failed to get PR diff: %v", err)
	} else {
		diffSummary = formatDiffSummary(files)
	}

	var checkRuns []github.CheckRun
	ciStatus := "Could not fetch CI status."
	if runs, err := r.client.ListCheckRuns(ctx, pr.HeadRefOid); err != nil {
		r.logger.Warn("Failed to get CI status: %v", err)
	} else {
		// The reviewer must never judge its own check.
		for i := range runs {
			if strings.Contains(strings.ToLower(runs[i].Name), "reviewer") {
				continue
			}
			checkRuns = append(checkRuns, runs[i])
		}
		ciStatus = formatCIStatus(checkRuns)
	}

	var issue *github.Issue
	iter := 1
	if issueNumber := ExtractIssueNumber(pr.Body); issueNumber > 0 {
		if loaded, err := r.client.GetIssue(ctx, issueNumber); err != nil {
			r.logger.Warn("Failed to get linked issue #%d: %v", issueNumber, err)
		} else {
			issue = loaded
			if n, err := r.tracker.Get(ctx, issueNumber); err != nil {
				r.logger.Warn("Failed to read iteration for issue #%d: %v", issueNumber, err)
			} else if n > 0 {
				iter = n
			}
			r.logger.Info("Linked to issue #%d, iteration %d", issueNumber, iter)
		}
	}

	forceApprove := iter >= r.cfg.MaxReviewIterations
	if forceApprove {
		r.logger.Info("Max iterations reached, will force approval")
	}

	decision := r.decide(ctx, pr, issue, diffSummary, ciStatus, iter)

	if forceApprove && decision.Status == protocol.StatusChangesRequested {
		decision = protocol.ReviewDecision{
			Status: protocol.StatusApproved,
			Summary: fmt.Sprintf("**Forced approval after %d iterations.** Original assessment: %s",
				r.cfg.MaxReviewIterations, decision.Summary),
			Issues: append(
				[]string{"This PR exceeded the maximum iteration limit and was auto-approved."},
				decision.Issues...),
			Suggestions: decision.Suggestions,
		}
	}

	if len(github.FailingChecks(checkRuns, r.cfg.ExcludedChecks)) > 0 &&
		decision.Status == protocol.StatusApproved && !forceApprove {
		decision.Status = protocol.StatusChangesRequested
		decision.Issues = append(decision.Issues, "CI checks are failing. Please fix before approval.")
	}

	decision.Iteration = iter
	decision.MaxIterations = r.cfg.MaxReviewIterations

	comment, err := formatReviewComment(&decision, pr.URL, pr.HeadRefName)
	if err != nil {
		return nil, err
	}
	if err := r.client.CommentOnPR(ctx, prNumber, comment); err != nil {
		return nil, logx.Wrap(err, "failed to post review comment")
	}

	// The formal review is best-effort: the protocol comment already
	// carries the decision for the other agents.
	if err := r.client.CreateReview(ctx, prNumber, decision.Approved(), formatReviewBody(&decision)); err != nil {
		r.logger.Warn("Failed to post PR review: %v", err)
	}

	writeActionsSummary(&decision, pr.URL, pr.HeadRefName, r.logger)
	writeStatusOutput(decision.Status)

	r.logger.Info("Review completed: %s", decision.Status)
	outcome = strings.ToLower(decision.Status)
	return &decision, nil
}

// decide runs the review conversation. The model may use read-only
// tools for extra context before emitting its JSON decision. Failures
// degrade to CHANGES_REQUESTED so a broken model never auto-approves.
func (r *Reviewer) decide(ctx context.Context, pr *github.PullRequest, issue *github.Issue, diffSummary, ciStatus string, iter int) protocol.ReviewDecision {
	ix := index.New(r.workspaceRoot)
	if err := ix.Build(); err != nil {
		r.logger.Warn("Code index build failed: %v", err)
	}
	provider := tools.NewProvider(r.workspaceRoot, ix)

	var toolDefs []tools.ToolDefinition
	for _, def := range provider.Definitions() {
		if reviewerToolNames[def.Name] {
			toolDefs = append(toolDefs, def)
		}
	}

	system := buildInstructions(pr, issue, diffSummary, ciStatus, iter, r.cfg.MaxReviewIterations)
	messages := []agent.CompletionMessage{
		agent.NewSystemMessage(system),
		agent.NewUserMessage("Please review this pull request and provide your decision."),
	}

	for turn := 0; turn < maxReviewTurns; turn++ {
		resp, err := r.llm.Complete(ctx, agent.CompletionRequest{
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   r.cfg.LLM.MaxTokens,
			Temperature: agent.TemperatureDeterministic,
		})
		if err != nil {
			r.logger.Error("Reviewer agent failed: %v", err)
			return failedDecision(err)
		}

		if resp.Content != "" {
			messages = append(messages, agent.NewAssistantMessage(resp.Content))
		}

		if len(resp.ToolCalls) == 0 {
			var decision protocol.ReviewDecision
			raw, err := agent.ExtractJSON(resp.Content)
			if err == nil {
				err = json.Unmarshal([]byte(raw), &decision)
			}
			if err != nil || (decision.Status != protocol.StatusApproved && decision.Status != protocol.StatusChangesRequested) {
				messages = append(messages, agent.NewUserMessage(
					`Respond with a single JSON object containing "status" (APPROVED or CHANGES_REQUESTED), "summary", "issues", and "suggestions".`))
				continue
			}
			return decision
		}

		for i := range resp.ToolCalls {
			call := &resp.ToolCalls[i]
			result, err := provider.Execute(ctx, call.Name, call.Parameters)
			if err != nil {
				result = map[string]any{"ok": false, "error": err.Error()}
			}
			rendered, _ := json.Marshal(result)
			messages = append(messages, agent.NewUserMessage(
				fmt.Sprintf("Tool %s result:\n%s", call.Name, rendered)))
		}
	}

	return failedDecision(fmt.Errorf("no decision after %d turns", maxReviewTurns))
}

func failedDecision(err error) protocol.ReviewDecision {
	return protocol.ReviewDecision{
		Status:  protocol.StatusChangesRequested,
		Summary: fmt.Sprintf("Review failed: %v", err),
		Issues:  []string{"Could not complete automated review"},
	}
}
