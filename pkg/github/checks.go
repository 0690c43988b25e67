package github

import (
	"context"
	"fmt"
)

// CheckRun represents a CI check run from the checks API.
type CheckRun struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Status     string         `json:"status"`     // queued, in_progress, completed
	Conclusion string         `json:"conclusion"` // success, failure, skipped, neutral, ...
	DetailsURL string         `json:"details_url"`
	Output     CheckRunOutput `json:"output"`
}

// CheckRunOutput carries the human-readable result of a check run.
type CheckRunOutput struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// CheckAnnotation is a single annotation attached to a check run,
// typically a compiler or linter diagnostic with file and line.
type CheckAnnotation struct {
	Path            string `json:"path"`
	StartLine       int    `json:"start_line"`
	EndLine         int    `json:"end_line"`
	AnnotationLevel string `json:"annotation_level"`
	Message         string `json:"message"`
}

// IsFailing reports whether the check run completed with a conclusion
// that counts as a failure. Skipped and neutral conclusions do not.
func (cr *CheckRun) IsFailing() bool {
	if cr.Status != "completed" {
		return false
	}
	switch cr.Conclusion {
	case "success", "skipped", "neutral":
		return false
	}
	return true
}

// ListCheckRuns returns all check runs for a commit ref (SHA or branch).
func (c *CLIClient) ListCheckRuns(ctx context.Context, ref string) ([]CheckRun, error) {
	var result struct {
		CheckRuns []CheckRun `json:"check_runs"`
	}
	endpoint := fmt.Sprintf("repos/%s/commits/%s/check-runs?per_page=100", c.RepoPath(), ref)
	err := c.runJSON(ctx, &result, "api", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list check runs for %s: %w", ref, err)
	}
	return result.CheckRuns, nil
}

// GetCheckAnnotations returns the annotations for a check run.
func (c *CLIClient) GetCheckAnnotations(ctx context.Context, checkRunID int64) ([]CheckAnnotation, error) {
	var annotations []CheckAnnotation
	endpoint := fmt.Sprintf("repos/%s/check-runs/%d/annotations", c.RepoPath(), checkRunID)
	err := c.runJSON(ctx, &annotations, "api", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get annotations for check run %d: %w", checkRunID, err)
	}
	return annotations, nil
}

// FailingChecks filters check runs down to completed failures, excluding
// any check whose name appears in excluded (the agents' own checks).
func FailingChecks(runs []CheckRun, excluded []string) []CheckRun {
	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[name] = true
	}

	var failing []CheckRun
	for i := range runs {
		run := &runs[i]
		if skip[run.Name] {
			continue
		}
		if run.IsFailing() {
			failing = append(failing, *run)
		}
	}
	return failing
}
