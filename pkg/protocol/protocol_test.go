package protocol

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueagents/pkg/github"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	plan := Plan{
		Summary: "Add retry logic to the fetcher",
		Steps:   []string{"Locate the fetcher", "Add backoff", "Add tests"},
	}

	body, err := Encode(PlanMarker, plan, []string{"## Implementation Plan", plan.Summary})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(body, PlanMarker+"\n"))
	assert.Contains(t, body, "```json")

	decoded, ok := Decode[Plan](PlanMarker, body)
	require.True(t, ok)
	assert.Equal(t, plan, decoded)
}

func TestDecodeNeverFails(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"no marker", "just a human comment"},
		{"marker not first line", "hello\n" + PlanMarker + "\n```json\n{}\n```"},
		{"wrong marker", ReviewerFeedbackMarker + "\n```json\n{\"summary\":\"x\"}\n```"},
		{"marker without json", PlanMarker + "\nno payload here"},
		{"malformed json", PlanMarker + "\n```json\n{\"summary\": \n```"},
		{"unfenced json", PlanMarker + "\n{\"summary\": \"x\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Decode[Plan](PlanMarker, tt.body)
			assert.False(t, ok)
		})
	}
}

func TestDecodeIgnoresSurroundingProse(t *testing.T) {
	body := PlanMarker + "\n\nSome prose for humans.\n\n```json\n{\"summary\":\"s\",\"steps\":[\"a\"]}\n```\n\nTrailing notes."
	plan, ok := Decode[Plan](PlanMarker, body)
	require.True(t, ok)
	assert.Equal(t, "s", plan.Summary)
	assert.Equal(t, []string{"a"}, plan.Steps)
}

func TestFindLatestPicksNewestValid(t *testing.T) {
	mk := func(id int64, at time.Time, body string) github.IssueComment {
		return github.IssueComment{ID: id, CreatedAt: at, Body: body}
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	oldBody, err := Encode(PlanMarker, Plan{Summary: "old"}, nil)
	require.NoError(t, err)
	newBody, err := Encode(PlanMarker, Plan{Summary: "new"}, nil)
	require.NoError(t, err)

	comments := []github.IssueComment{
		mk(3, base.Add(2*time.Hour), newBody),
		mk(1, base, oldBody),
		mk(4, base.Add(3*time.Hour), "human chatter"),
		mk(5, base.Add(4*time.Hour), PlanMarker+"\n```json\n{broken\n```"),
	}

	plan, ok := FindLatest[Plan](PlanMarker, comments)
	require.True(t, ok)
	assert.Equal(t, "new", plan.Summary)
}

func TestFindLatestEmpty(t *testing.T) {
	_, ok := FindLatest[Plan](PlanMarker, nil)
	assert.False(t, ok)

	_, ok = FindLatest[Plan](PlanMarker, []github.IssueComment{{Body: "nope"}})
	assert.False(t, ok)
}

func TestReviewDecisionApproved(t *testing.T) {
	d := ReviewDecision{Status: StatusApproved}
	assert.True(t, d.Approved())

	d.Status = StatusChangesRequested
	assert.False(t, d.Approved())
}
