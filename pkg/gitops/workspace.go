package gitops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"issueagents/pkg/logx"
)

// Workspace is an ephemeral clone directory for one coder turn. Nothing
// in it survives the turn; all durable state goes through git push and
// the GitHub API.
type Workspace struct {
	tempDir string
	repoDir string
	runner  GitRunner
	logger  *logx.Logger
}

// NewWorkspace creates the temporary directory that will hold the clone.
func NewWorkspace(runner GitRunner, prefix string) (*Workspace, error) {
	tempDir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &Workspace{
		tempDir: tempDir,
		repoDir: filepath.Join(tempDir, "repo"),
		runner:  runner,
		logger:  logx.NewLogger("workspace"),
	}, nil
}

// RepoDir returns the path of the cloned repository.
func (w *Workspace) RepoDir() string {
	return w.repoDir
}

// Cleanup removes the workspace recursively. Failures are logged and
// swallowed; a leaked temp directory must never fail a turn.
func (w *Workspace) Cleanup() {
	w.logger.Debug("Cleaning up workspace: %s", w.tempDir)
	if err := os.RemoveAll(w.tempDir); err != nil {
		w.logger.Warn("Failed to clean up workspace %s: %v", w.tempDir, err)
	}
}

// AuthenticatedURL injects a token into an HTTPS clone URL using the
// x-access-token scheme. The result must never be logged.
func AuthenticatedURL(cloneURL, token string) string {
	if token == "" {
		return cloneURL
	}
	return strings.Replace(cloneURL, "https://", fmt.Sprintf("https://x-access-token:%s@", token), 1)
}

// Clone performs a shallow clone into the workspace. When branch is
// non-empty the clone checks it out directly.
func (w *Workspace) Clone(ctx context.Context, cloneURL, token, branch string) error {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, AuthenticatedURL(cloneURL, token), w.repoDir)

	if _, err := w.runner.Run(ctx, "", nil, args...); err != nil {
		return fmt.Errorf("clone failed: %w", err)
	}
	return nil
}

// CheckoutExisting fetches a remote branch into the shallow clone and
// checks it out as a local tracking branch.
func (w *Workspace) CheckoutExisting(ctx context.Context, branch string) error {
	if _, err := w.runner.Run(ctx, w.repoDir, nil, "fetch", "origin", branch); err != nil {
		return fmt.Errorf("fetch of branch %s failed: %w", branch, err)
	}
	if _, err := w.runner.Run(ctx, w.repoDir, nil, "checkout", "-b", branch, "origin/"+branch); err != nil {
		return fmt.Errorf("checkout of branch %s failed: %w", branch, err)
	}
	return nil
}

// CreateBranch creates and switches to a new local branch.
func (w *Workspace) CreateBranch(ctx context.Context, branch string) error {
	if _, err := w.runner.Run(ctx, w.repoDir, nil, "checkout", "-b", branch); err != nil {
		return fmt.Errorf("branch creation for %s failed: %w", branch, err)
	}
	return nil
}

// WithWorkspace acquires a workspace, runs fn, and always cleans up,
// including on panic.
func WithWorkspace(runner GitRunner, prefix string, fn func(w *Workspace) error) error {
	w, err := NewWorkspace(runner, prefix)
	if err != nil {
		return err
	}
	defer w.Cleanup()
	return fn(w)
}
