// Package gitops provides the git layer for the coder agent: a runner
// for git subprocesses, ephemeral clone workspaces, and the commit/push
// pipeline.
package gitops

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"issueagents/pkg/logx"
)

// GitRunner runs git commands, with dependency injection for tests.
type GitRunner interface {
	// Run executes a git command in dir. Env entries are appended to the
	// process environment. Returns combined stdout+stderr.
	Run(ctx context.Context, dir string, env []string, args ...string) ([]byte, error)
}

// DefaultGitRunner implements GitRunner using the system git command.
type DefaultGitRunner struct {
	logger *logx.Logger
}

// NewDefaultGitRunner creates a runner that shells out to git.
func NewDefaultGitRunner() *DefaultGitRunner {
	return &DefaultGitRunner{
		logger: logx.NewLogger("git"),
	}
}

var credentialRegex = regexp.MustCompile(`x-access-token:[^@]+@`)

// Redact masks embedded access tokens in a string destined for logs or
// error messages.
func Redact(s string) string {
	return credentialRegex.ReplaceAllString(s, "x-access-token:***@")
}

func redactArgs(args []string) string {
	redacted := make([]string, len(args))
	for i, a := range args {
		redacted[i] = Redact(a)
	}
	return strings.Join(redacted, " ")
}

// Run executes a git command. Token-bearing URLs never reach logs or
// returned errors.
func (g *DefaultGitRunner) Run(ctx context.Context, dir string, env []string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}

	g.logger.Debug("Executing: git %s (in %s)", redactArgs(args), dir)

	output, err := cmd.CombinedOutput()
	if err != nil {
		g.logger.Error("git %s failed: %v", redactArgs(args), err)
		g.logger.Debug("git output: %s", Redact(string(output)))
		return output, fmt.Errorf("git %s failed in %s: %w\nOutput: %s",
			redactArgs(args), dir, err, Redact(string(output)))
	}
	return output, nil
}
