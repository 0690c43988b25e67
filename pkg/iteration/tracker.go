// Package iteration tracks the per-issue development iteration count
// using iteration-<N> labels. The coder and reviewer share the counter
// so the ceiling applies to the whole develop-review cycle.
package iteration

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"issueagents/pkg/github"
	"issueagents/pkg/logx"
)

const labelPrefix = "iteration-"

// Tracker reads and advances the iteration label on issues.
type Tracker struct {
	client github.Client
	logger *logx.Logger
}

// NewTracker creates a tracker backed by the given client.
func NewTracker(client github.Client) *Tracker {
	return &Tracker{
		client: client,
		logger: logx.NewLogger("iteration"),
	}
}

// Get returns the current iteration for an issue. An absent or
// malformed label reads as 0; only provider failures surface as errors.
func (t *Tracker) Get(ctx context.Context, issueNumber int) (int, error) {
	labels, err := t.client.GetIssueLabels(ctx, issueNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to read labels for issue #%d: %w", issueNumber, err)
	}
	return Parse(labels), nil
}

// Parse extracts the iteration count from a label list. Labels with a
// malformed numeric part are skipped, so a stray human-added
// iteration-* label cannot hide the real counter.
func Parse(labels []string) int {
	for _, label := range labels {
		if !strings.HasPrefix(label, labelPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(label, labelPrefix))
		if err != nil || n < 0 {
			continue
		}
		return n
	}
	return 0
}

// Increment advances the iteration label by one and returns the new
// value. All existing iteration-* labels are removed first; removal is
// best-effort since a stale duplicate only affects display.
func (t *Tracker) Increment(ctx context.Context, issueNumber int) (int, error) {
	labels, err := t.client.GetIssueLabels(ctx, issueNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to read labels for issue #%d: %w", issueNumber, err)
	}

	current := Parse(labels)
	for _, label := range labels {
		if strings.HasPrefix(label, labelPrefix) {
			if err := t.client.RemoveIssueLabel(ctx, issueNumber, label); err != nil {
				t.logger.Warn("failed to remove label %q from issue #%d: %v", label, issueNumber, err)
			}
		}
	}

	next := current + 1
	if err := t.client.AddIssueLabel(ctx, issueNumber, Label(next)); err != nil {
		return 0, fmt.Errorf("failed to add iteration label to issue #%d: %w", issueNumber, err)
	}
	return next, nil
}

// Label renders the iteration label for a count.
func Label(n int) string {
	return fmt.Sprintf("%s%d", labelPrefix, n)
}
