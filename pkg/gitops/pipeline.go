package gitops

import (
	"context"
	"fmt"
	"strings"
)

// Fixed bot identity for all commits made by the coder agent.
const (
	BotName  = "Coder Agent"
	BotEmail = "agent@example.com"
)

// botIdentityEnv returns the env entries that pin author and committer
// to the bot identity, avoiding any dependence on host git config.
func botIdentityEnv() []string {
	return []string{
		"GIT_AUTHOR_NAME=" + BotName,
		"GIT_AUTHOR_EMAIL=" + BotEmail,
		"GIT_COMMITTER_NAME=" + BotName,
		"GIT_COMMITTER_EMAIL=" + BotEmail,
	}
}

// CommitAll stages everything and commits with the given message.
// Returns (false, nil) when the tree is clean; re-running a turn that
// produced no changes is not an error.
func CommitAll(ctx context.Context, runner GitRunner, repoDir, message string) (bool, error) {
	if _, err := runner.Run(ctx, repoDir, nil, "add", "-A"); err != nil {
		return false, fmt.Errorf("failed to stage changes: %w", err)
	}

	status, err := runner.Run(ctx, repoDir, nil, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to check status: %w", err)
	}
	if strings.TrimSpace(string(status)) == "" {
		return false, nil
	}

	if _, err := runner.Run(ctx, repoDir, botIdentityEnv(), "commit", "-m", message); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// Push publishes the branch, setting upstream so later pushes from the
// same clone are plain.
func Push(ctx context.Context, runner GitRunner, repoDir, branch string) error {
	if _, err := runner.Run(ctx, repoDir, nil, "push", "-u", "origin", branch); err != nil {
		return fmt.Errorf("failed to push branch %s: %w", branch, err)
	}
	return nil
}

// CommitMessage renders the conventional commit message for a coder
// turn: feat: for the first push on a branch, fix: for updates.
func CommitMessage(issueNumber int, issueTitle string, isUpdate bool) string {
	prefix := "feat"
	if isUpdate {
		prefix = "fix"
	}
	return fmt.Sprintf("%s: %s (#%d)", prefix, issueTitle, issueNumber)
}
