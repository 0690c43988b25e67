// Command issueagents runs the GitHub issue automation agents, either
// as a long-lived watcher or as one-shot turns for CI workflows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"issueagents/pkg/agent"
	"issueagents/pkg/agent/anthropic"
	"issueagents/pkg/agent/openai"
	"issueagents/pkg/config"
	"issueagents/pkg/github"
	"issueagents/pkg/gitops"
	"issueagents/pkg/metrics"
	"issueagents/pkg/persistence"
	"issueagents/pkg/watch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "config.yaml", "Path to the YAML configuration file")
		watchMode  = flag.Bool("watch", false, "Poll the repository and dispatch agent turns")
		planIssue  = flag.Int("plan", 0, "Run one planner turn for the given issue number")
		codeIssue  = flag.Int("code", 0, "Run one coder turn for the given issue number")
		codePR     = flag.Int("code-pr", 0, "Run one coder turn driven by the given PR's comment thread")
		reviewPR   = flag.Int("review", 0, "Run one reviewer turn for the given PR number")
		fixCIPR    = flag.Int("fix-ci", 0, "Analyze failing CI for the given PR and run a fix turn")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	llm, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	client := github.NewClient(cfg.Owner(), cfg.Name())
	runner := gitops.NewDefaultGitRunner()
	orch := watch.NewOrchestrator(client, llm, runner, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go metrics.Serve(cfg.MetricsAddr)
	}

	switch {
	case *watchMode:
		return runWatcher(ctx, client, orch, cfg)
	case *planIssue > 0:
		return orch.Plan(ctx, *planIssue)
	case *codeIssue > 0:
		return orch.Code(ctx, *codeIssue, nil)
	case *codePR > 0:
		return orch.CodePR(ctx, *codePR)
	case *reviewPR > 0:
		return orch.Review(ctx, *reviewPR)
	case *fixCIPR > 0:
		return orch.FixCI(ctx, *fixCIPR)
	default:
		flag.Usage()
		return fmt.Errorf("no mode selected: pass -watch or one of -plan, -code, -code-pr, -review, -fix-ci")
	}
}

func runWatcher(ctx context.Context, client github.Client, orch *watch.Orchestrator, cfg *config.Config) error {
	db, err := persistence.Open(cfg.StatePath)
	if err != nil {
		return err
	}
	defer db.Close()

	watcher := watch.New(client, orch, watch.NewCursorStore(db), cfg)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLLMClient(cfg *config.Config) (agent.LLMClient, error) {
	var inner agent.LLMClient
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic:
		inner = anthropic.New(cfg.LLM.APIKey, cfg.LLM.Model)
	case config.ProviderOpenAI:
		inner = openai.New(cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	return agent.NewRetryableClient(inner, cfg.LLM.Retries), nil
}
