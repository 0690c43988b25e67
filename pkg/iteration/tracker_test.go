package iteration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueagents/pkg/github"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   int
	}{
		{"no labels", nil, 0},
		{"unrelated labels", []string{"bug", "help wanted"}, 0},
		{"iteration present", []string{"bug", "iteration-3"}, 3},
		{"malformed numeric part", []string{"iteration-abc"}, 0},
		{"malformed label skipped", []string{"iteration-final", "iteration-3"}, 3},
		{"negative", []string{"iteration--1"}, 0},
		{"zero", []string{"iteration-0"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.labels))
		})
	}
}

func TestGetDefaultsToZero(t *testing.T) {
	client := github.NewMockClient()
	tracker := NewTracker(client)

	n, err := tracker.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIncrementSequence(t *testing.T) {
	client := github.NewMockClient()
	client.IssueLabels[7] = []string{"bug"}
	tracker := NewTracker(client)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		n, err := tracker.Increment(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	// Exactly one iteration label remains alongside the original.
	labels := client.IssueLabels[7]
	assert.ElementsMatch(t, []string{"bug", "iteration-3"}, labels)
}

func TestIncrementReplacesStaleLabels(t *testing.T) {
	client := github.NewMockClient()
	client.IssueLabels[9] = []string{"iteration-2", "iteration-5"}
	tracker := NewTracker(client)

	n, err := tracker.Increment(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 3, n) // first label wins as the current value
	assert.Equal(t, []string{"iteration-3"}, client.IssueLabels[9])
}
