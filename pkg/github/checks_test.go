package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckRunIsFailing(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		conclusion string
		want       bool
	}{
		{"completed failure", "completed", "failure", true},
		{"completed timed out", "completed", "timed_out", true},
		{"completed cancelled", "completed", "cancelled", true},
		{"completed success", "completed", "success", false},
		{"completed skipped", "completed", "skipped", false},
		{"completed neutral", "completed", "neutral", false},
		{"still running", "in_progress", "", false},
		{"queued", "queued", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := CheckRun{Status: tt.status, Conclusion: tt.conclusion}
			assert.Equal(t, tt.want, run.IsFailing())
		})
	}
}

func TestFailingChecksExcludes(t *testing.T) {
	runs := []CheckRun{
		{Name: "build", Status: "completed", Conclusion: "failure"},
		{Name: "reviewer", Status: "completed", Conclusion: "failure"},
		{Name: "lint", Status: "completed", Conclusion: "success"},
		{Name: "test", Status: "in_progress"},
	}

	failing := FailingChecks(runs, []string{"reviewer"})
	assert.Len(t, failing, 1)
	assert.Equal(t, "build", failing[0].Name)
}
