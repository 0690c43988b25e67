// Package watch implements the polling watcher that drives the agent
// loop: new issues get planned, new plans get coded, updated PRs get
// reviewed, and change requests get fed back to the coder. A single
// goroutine runs all checks in a fixed order so turns never race each
// other.
package watch

import (
	"context"
	"sort"
	"strconv"
	"time"

	"issueagents/pkg/config"
	"issueagents/pkg/github"
	"issueagents/pkg/logx"
	"issueagents/pkg/metrics"
	"issueagents/pkg/protocol"
	"issueagents/pkg/reviewer"
)

// Dispatcher runs agent turns on behalf of the watcher. Dispatches are
// synchronous; a turn finishes before the next event is considered.
type Dispatcher interface {
	Plan(ctx context.Context, issueNumber int) error
	Code(ctx context.Context, issueNumber int, reviewerFeedback []string) error
	Review(ctx context.Context, prNumber int) error
}

// skipAuthors are event authors whose activity never triggers a turn.
var skipAuthors = map[string]bool{
	"github-actions[bot]": true,
	"dependabot[bot]":     true,
}

// Watcher polls GitHub and dispatches agent turns.
type Watcher struct {
	client     github.Client
	dispatcher Dispatcher
	cursors    *CursorStore
	cfg        *config.Config
	logger     *logx.Logger
}

// New constructs a Watcher.
func New(client github.Client, dispatcher Dispatcher, cursors *CursorStore, cfg *config.Config) *Watcher {
	return &Watcher{
		client:     client,
		dispatcher: dispatcher,
		cursors:    cursors,
		cfg:        cfg,
		logger:     logx.NewLogger("watcher"),
	}
}

// Run polls until the context is cancelled. The first poll happens
// immediately.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("Watching repository %s for events (polling every %ds)", w.cfg.Repo, w.cfg.PollSeconds)
	events := "new issues, PR updates, reviewer feedback"
	if w.cfg.AutoCodeAfterPlan {
		events += ", auto-code after plan"
	}
	w.logger.Info("Events: %s", events)

	ticker := time.NewTicker(time.Duration(w.cfg.PollSeconds) * time.Second)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("Watcher stopping: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes one poll cycle. Check errors are logged and leave
// the affected cursor unadvanced, so the event is retried next poll.
func (w *Watcher) RunOnce(ctx context.Context) {
	w.checkNewIssues(ctx)
	if w.cfg.AutoCodeAfterPlan {
		w.checkNewPlans(ctx)
	}
	w.checkPRUpdates(ctx)
	w.checkReviewerFeedback(ctx)
	metrics.PollsTotal.Inc()
}

// checkNewIssues plans issues created since the last poll.
func (w *Watcher) checkNewIssues(ctx context.Context) {
	lastSeen, err := w.cursors.GetTime(ctx, ScopeIssueCreated, "last")
	if err != nil {
		w.logger.Error("Failed to read issue cursor: %v", err)
		return
	}

	issues, err := w.client.ListOpenIssues(ctx)
	if err != nil {
		w.logger.Error("Failed to list open issues: %v", err)
		return
	}
	// Oldest first, so the cursor only ever moves forward.
	sort.Slice(issues, func(i, j int) bool { return issues[i].CreatedAt.Before(issues[j].CreatedAt) })

	for i := range issues {
		issue := &issues[i]
		if skipAuthors[issue.Author.Login] {
			continue
		}
		if !issue.CreatedAt.After(lastSeen) {
			continue
		}

		w.logger.Info("New issue #%d: %s", issue.Number, issue.Title)
		if err := w.dispatcher.Plan(ctx, issue.Number); err != nil {
			w.logger.Error("Planner dispatch for issue #%d failed: %v", issue.Number, err)
			return
		}
		lastSeen = issue.CreatedAt
		if err := w.cursors.SetTime(ctx, ScopeIssueCreated, "last", lastSeen); err != nil {
			w.logger.Error("Failed to persist issue cursor: %v", err)
			return
		}
	}
}

// checkNewPlans triggers the coder when a fresh plan comment appears.
func (w *Watcher) checkNewPlans(ctx context.Context) {
	issues, err := w.client.ListOpenIssues(ctx)
	if err != nil {
		w.logger.Error("Failed to list open issues: %v", err)
		return
	}

	for i := range issues {
		issue := &issues[i]
		key := strconv.Itoa(issue.Number)

		lastID, err := w.cursors.GetInt64(ctx, ScopeIssuePlan, key)
		if err != nil {
			w.logger.Error("Failed to read plan cursor for issue #%d: %v", issue.Number, err)
			continue
		}

		comments, err := w.client.ListIssueComments(ctx, issue.Number)
		if err != nil {
			w.logger.Warn("Failed to get comments for issue #%d: %v", issue.Number, err)
			continue
		}
		sortComments(comments)

		advanced := lastID
		failed := false
		for c := range comments {
			comment := &comments[c]
			if comment.ID <= advanced {
				continue
			}

			if _, ok := protocol.Decode[protocol.Plan](protocol.PlanMarker, comment.Body); ok {
				w.logger.Info("New plan detected for issue #%d, auto-triggering coder", issue.Number)
				if err := w.dispatcher.Code(ctx, issue.Number, nil); err != nil {
					w.logger.Error("Coder dispatch for issue #%d failed: %v", issue.Number, err)
					failed = true
					break
				}
			}
			advanced = comment.ID
		}

		if !failed && advanced != lastID {
			if err := w.cursors.SetInt64(ctx, ScopeIssuePlan, key, advanced); err != nil {
				w.logger.Error("Failed to persist plan cursor for issue #%d: %v", issue.Number, err)
			}
		}
	}
}

// checkPRUpdates reviews PRs whose head moved since the last poll.
func (w *Watcher) checkPRUpdates(ctx context.Context) {
	prs, err := w.client.ListOpenPRs(ctx)
	if err != nil {
		w.logger.Error("Failed to list open PRs: %v", err)
		return
	}

	for i := range prs {
		pr := &prs[i]
		key := strconv.Itoa(pr.Number)

		lastSeen, err := w.cursors.GetTime(ctx, ScopePRUpdated, key)
		if err != nil {
			w.logger.Error("Failed to read PR cursor for #%d: %v", pr.Number, err)
			continue
		}
		if !pr.UpdatedAt.After(lastSeen) {
			continue
		}

		w.logger.Info("PR #%d updated: %s", pr.Number, pr.Title)
		if err := w.dispatcher.Review(ctx, pr.Number); err != nil {
			w.logger.Error("Reviewer dispatch for PR #%d failed: %v", pr.Number, err)
			continue
		}
		if err := w.cursors.SetTime(ctx, ScopePRUpdated, key, pr.UpdatedAt); err != nil {
			w.logger.Error("Failed to persist PR cursor for #%d: %v", pr.Number, err)
		}
	}
}

// checkReviewerFeedback feeds change requests back to the coder while
// the iteration ceiling allows it.
func (w *Watcher) checkReviewerFeedback(ctx context.Context) {
	prs, err := w.client.ListOpenPRs(ctx)
	if err != nil {
		w.logger.Error("Failed to list open PRs: %v", err)
		return
	}

	for i := range prs {
		pr := &prs[i]
		key := strconv.Itoa(pr.Number)

		lastID, err := w.cursors.GetInt64(ctx, ScopePRFeedback, key)
		if err != nil {
			w.logger.Error("Failed to read feedback cursor for PR #%d: %v", pr.Number, err)
			continue
		}

		comments, err := w.client.ListPRComments(ctx, pr.Number)
		if err != nil {
			w.logger.Warn("Failed to get PR comments for #%d: %v", pr.Number, err)
			continue
		}
		sortComments(comments)

		advanced := lastID
		failed := false
		for c := range comments {
			comment := &comments[c]
			if comment.ID <= advanced {
				continue
			}

			decision, ok := protocol.Decode[protocol.ReviewDecision](protocol.ReviewerFeedbackMarker, comment.Body)
			if !ok {
				advanced = comment.ID
				continue
			}

			w.logger.Info("Found reviewer feedback on PR #%d: status=%s, iteration=%d/%d",
				pr.Number, decision.Status, decision.Iteration, decision.MaxIterations)

			if decision.Status == protocol.StatusChangesRequested && decision.Iteration < decision.MaxIterations {
				issueNumber := reviewer.ExtractIssueNumber(pr.Body)
				if issueNumber == 0 {
					w.logger.Warn("Could not find linked issue for PR #%d, cannot trigger coder", pr.Number)
				} else {
					w.logger.Info("Reviewer requested changes on PR #%d, triggering coder for issue #%d",
						pr.Number, issueNumber)
					if err := w.dispatcher.Code(ctx, issueNumber, decision.Issues); err != nil {
						w.logger.Error("Coder dispatch for issue #%d failed: %v", issueNumber, err)
						failed = true
						break
					}
				}
			}
			advanced = comment.ID
		}

		if !failed && advanced != lastID {
			if err := w.cursors.SetInt64(ctx, ScopePRFeedback, key, advanced); err != nil {
				w.logger.Error("Failed to persist feedback cursor for PR #%d: %v", pr.Number, err)
			}
		}
	}
}

// sortComments orders comments oldest first, with the ID breaking ties.
func sortComments(comments []github.IssueComment) {
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}
