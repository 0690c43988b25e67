package coder

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"issueagents/pkg/github"
)

// branchPattern matches branches the coder owns. The 8-hex suffix keeps
// names unique across retries for the same issue.
var branchPattern = regexp.MustCompile(`^coder-agent/issue-(\d+)-[0-9a-f]{8}$`)

// BranchInfo describes the branch a coder turn will work on. It is
// derived state, recomputed each turn from the open PR list.
type BranchInfo struct {
	Name     string
	IsUpdate bool
}

// NewBranchName generates a fresh branch name for an issue.
func NewBranchName(issueNumber int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("coder-agent/issue-%d-%s", issueNumber, suffix)
}

// IsCoderBranch reports whether a ref matches the coder's naming scheme.
func IsCoderBranch(ref string) bool {
	return branchPattern.MatchString(ref)
}

// FindExistingBranch scans open PRs for a coder branch belonging to the
// issue. The first match wins; more than one open match means a prior
// turn raced, and reusing the first is the least disruptive choice.
func FindExistingBranch(ctx context.Context, client github.Client, issueNumber int) (string, error) {
	prs, err := client.ListOpenPRs(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list open PRs: %w", err)
	}
	prefix := fmt.Sprintf("coder-agent/issue-%d-", issueNumber)
	for i := range prs {
		if strings.HasPrefix(prs[i].HeadRefName, prefix) && IsCoderBranch(prs[i].HeadRefName) {
			return prs[i].HeadRefName, nil
		}
	}
	return "", nil
}

// ResolveBranch decides which branch a turn uses. In CI-fix mode the PR
// head ref is trusted as-is; otherwise an existing coder branch for the
// issue is reused, falling back to a fresh name.
func ResolveBranch(ctx context.Context, client github.Client, issueNumber, ciFixPR int) (BranchInfo, error) {
	if ciFixPR > 0 {
		pr, err := client.GetPR(ctx, ciFixPR)
		if err != nil {
			return BranchInfo{}, fmt.Errorf("failed to load PR #%d: %w", ciFixPR, err)
		}
		return BranchInfo{Name: pr.HeadRefName, IsUpdate: true}, nil
	}

	existing, err := FindExistingBranch(ctx, client, issueNumber)
	if err != nil {
		return BranchInfo{}, err
	}
	if existing != "" {
		return BranchInfo{Name: existing, IsUpdate: true}, nil
	}
	return BranchInfo{Name: NewBranchName(issueNumber), IsUpdate: false}, nil
}
