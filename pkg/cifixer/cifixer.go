// Package cifixer implements the CI-failure analyzer: it inspects
// failing check runs on a pull request, asks the model for a structured
// diagnosis, and posts the report for the coder agent to act on.
package cifixer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"issueagents/pkg/agent"
	"issueagents/pkg/config"
	"issueagents/pkg/github"
	"issueagents/pkg/index"
	"issueagents/pkg/logx"
	"issueagents/pkg/metrics"
	"issueagents/pkg/protocol"
	"issueagents/pkg/tools"
)

// maxAnalysisTurns bounds the LLM conversation for one analysis,
// including tool-use turns.
const maxAnalysisTurns = 15

// maxAnnotationsPerCheck caps how many annotations one check
// contributes to the prompt.
const maxAnnotationsPerCheck = 20

// fixerToolNames is the read-only tool subset the analyzer may use.
var fixerToolNames = map[string]bool{
	tools.ToolGetWorkdir:     true,
	tools.ToolListDir:        true,
	tools.ToolReadFile:       true,
	tools.ToolSearchCodebase: true,
}

// Fixer drives CI-analysis turns.
type Fixer struct {
	client github.Client
	llm    agent.LLMClient
	cfg    *config.Config
	logger *logx.Logger

	workspaceRoot string
}

// New constructs a Fixer.
func New(client github.Client, llm agent.LLMClient, cfg *config.Config) *Fixer {
	root := os.Getenv("GITHUB_WORKSPACE")
	if root == "" {
		root, _ = os.Getwd()
	}
	return &Fixer{
		client:        client,
		llm:           llm,
		cfg:           cfg,
		logger:        logx.NewLogger("ci-fixer"),
		workspaceRoot: root,
	}
}

// WithWorkspaceRoot overrides the code search root, mainly for tests.
func (f *Fixer) WithWorkspaceRoot(root string) *Fixer {
	f.workspaceRoot = root
	return f
}

// Run analyzes the PR's failing checks. When every check is green
// nothing is posted and the returned analysis has status NO_ISSUES.
func (f *Fixer) Run(ctx context.Context, prNumber int) (*protocol.CIAnalysis, error) {
	started := time.Now()
	outcome := "error"
	defer func() { metrics.ObserveTurn("ci-fixer", outcome, time.Since(started)) }()

	f.logger.Info("Starting CI failure analysis for PR #%d", prNumber)

	pr, err := f.client.GetPR(ctx, prNumber)
	if err != nil {
		return nil, logx.Wrap(err, "failed to load PR")
	}

	failedInfo := ""
	var failed []github.CheckRun
	if runs, err := f.client.ListCheckRuns(ctx, pr.HeadRefOid); err != nil {
		f.logger.Warn("Failed to get CI status: %v", err)
		failedInfo = fmt.Sprintf("Could not fetch CI status: %v", err)
	} else {
		failed = github.FailingChecks(runs, f.cfg.ExcludedChecks)
		if len(failed) == 0 {
			f.logger.Info("No failed checks found for PR #%d", prNumber)
			outcome = "no_issues"
			return &protocol.CIAnalysis{
				Status:  protocol.CIStatusNoIssues,
				Summary: "All CI checks have passed or there are no check failures to analyze.",
			}, nil
		}
		failedInfo = f.formatAllFailures(ctx, failed)
		f.logger.Info("Found %d failed checks to analyze", len(failed))
	}

	diffContext := "Could not fetch changed files."
	if files, err := f.client.GetPRFiles(ctx, prNumber); err != nil {
		f.logger.Warn("Failed to get PR diff: %v", err)
	} else {
		diffContext = formatDiffContext(files)
	}

	analysis := f.analyze(ctx, pr, failedInfo, diffContext)

	// The model sometimes omits the check list; backfill it from what
	// actually failed.
	if len(analysis.FailedChecks) == 0 {
		for i := range failed {
			analysis.FailedChecks = append(analysis.FailedChecks, failed[i].Name)
		}
	}

	comment, err := formatAnalysisComment(&analysis, pr.URL)
	if err != nil {
		return nil, err
	}
	if err := f.client.CommentOnPR(ctx, prNumber, comment); err != nil {
		return nil, logx.Wrap(err, "failed to post analysis comment")
	}

	writeActionsSummary(&analysis, pr.URL, f.logger)

	f.logger.Info("CI analysis completed: %s", analysis.Status)
	outcome = strings.ToLower(analysis.Status)
	return &analysis, nil
}

// analyze runs the diagnosis conversation. The model may read the
// checked-out code for context before emitting its JSON analysis.
func (f *Fixer) analyze(ctx context.Context, pr *github.PullRequest, failedInfo, diffContext string) protocol.CIAnalysis {
	ix := index.New(f.workspaceRoot)
	if err := ix.Build(); err != nil {
		f.logger.Warn("Code index build failed: %v", err)
	}
	provider := tools.NewProvider(f.workspaceRoot, ix)

	var toolDefs []tools.ToolDefinition
	for _, def := range provider.Definitions() {
		if fixerToolNames[def.Name] {
			toolDefs = append(toolDefs, def)
		}
	}

	system := buildInstructions(pr.Title, pr.Body, failedInfo, diffContext)
	messages := []agent.CompletionMessage{
		agent.NewSystemMessage(system),
		agent.NewUserMessage("Please analyze the CI failures and provide suggestions for fixing them."),
	}

	for turn := 0; turn < maxAnalysisTurns; turn++ {
		resp, err := f.llm.Complete(ctx, agent.CompletionRequest{
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   f.cfg.LLM.MaxTokens,
			Temperature: agent.TemperatureDeterministic,
		})
		if err != nil {
			f.logger.Error("CI Fixer agent failed: %v", err)
			return failedAnalysis(err)
		}

		if resp.Content != "" {
			messages = append(messages, agent.NewAssistantMessage(resp.Content))
		}

		if len(resp.ToolCalls) == 0 {
			var analysis protocol.CIAnalysis
			raw, err := agent.ExtractJSON(resp.Content)
			if err == nil {
				err = json.Unmarshal([]byte(raw), &analysis)
			}
			if err != nil || analysis.Status == "" {
				messages = append(messages, agent.NewUserMessage(
					`Respond with a single JSON object containing "status" (ANALYZED, NO_ISSUES, or UNABLE_TO_ANALYZE), "summary", "failed_checks", "root_causes", "suggestions", and "general_advice".`))
				continue
			}
			return analysis
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

	return failedAnalysis(fmt.Errorf("no analysis after %d turns", maxAnalysisTurns))
}

func failedAnalysis(err error) protocol.CIAnalysis {
	return protocol.CIAnalysis{
		Status:        protocol.CIStatusUnableToAnalyze,
		Summary:       fmt.Sprintf("Failed to analyze CI failures: %v", err),
		GeneralAdvice: []string{"Please check the CI logs manually."},
	}
}

// formatAllFailures renders every failing check, with annotations,
// into the prompt section the model analyzes.
func (f *Fixer) formatAllFailures(ctx context.Context, failed []github.CheckRun) string {
	lines := []string{fmt.Sprintf("## Failed CI Checks (%d total)\n", len(failed))}
	for i := range failed {
		check := &failed[i]
		annotations, err := f.client.GetCheckAnnotations(ctx, check.ID)
		if err != nil {
			f.logger.Warn("Failed to get annotations for check %s: %v", check.Name, err)
		}
		lines = append(lines, formatCheckFailure(check, annotations), "")
	}
	return strings.Join(lines, "\n")
}

func formatCheckFailure(check *github.CheckRun, annotations []github.CheckAnnotation) string {
	lines := []string{
		fmt.Sprintf("### ❌ %s", check.Name),
		fmt.Sprintf("- **Status:** %s", check.Conclusion),
		fmt.Sprintf("- **URL:** %s", check.DetailsURL),
	}

	if check.Output.Title != "" {
		lines = append(lines, fmt.Sprintf("- **Title:** %s", check.Output.Title))
	}
	if check.Output.Summary != "" {
		summary := check.Output.Summary
		if len(summary) > 2000 {
			summary = summary[:2000] + "\n... (truncated)"
		}
		lines = append(lines, fmt.Sprintf("\n**Summary:**\n%s", summary))
	}

	if len(annotations) > 0 {
		lines = append(lines, "\n**Annotations:**")
		shown := annotations
		if len(shown) > maxAnnotationsPerCheck {
			shown = shown[:maxAnnotationsPerCheck]
		}
		for i := range shown {
			ann := &shown[i]
			emoji := "•"
			switch ann.AnnotationLevel {
			case "failure":
				emoji = "❌"
			case "warning":
				emoji = "⚠️"
			case "notice":
				emoji = "ℹ️"
			}
			lines = append(lines, fmt.Sprintf("- %s `%s:%d` - %s", emoji, ann.Path, ann.StartLine, ann.Message))
		}
		if len(annotations) > maxAnnotationsPerCheck {
			lines = append(lines, fmt.Sprintf("  ... and %d more annotations", len(annotations)-maxAnnotationsPerCheck))
		}
	}

	return strings.Join(lines, "\n")
}

func formatDiffContext(files []github.PullRequestFile) string {
	if len(files) == 0 {
		return "No changed files."
	}
	lines := []string{fmt.Sprintf("Changed files (%d total):", len(files))}
	for i := range files {
		lines = append(lines, fmt.Sprintf("  - %s (+%d/-%d)", files[i].Filename, files[i].Additions, files[i].Deletions))
	}
	return strings.Join(lines, "\n")
}
