package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

const gitTimeout = 5 * time.Second

// VCSProbe reads branch and working tree state from git
type VCSProbe struct {
	Root   string
	Runner Runner
}

// NewVCSProbe creates a version control probe for the project at root
func NewVCSProbe(root string, runner Runner) *VCSProbe {
	return &VCSProbe{Root: root, Runner: runner}
}

// Probe returns a degraded facet when root is not inside a repository or
// git cannot be run
func (v *VCSProbe) Probe(ctx context.Context) types.VersionControl {
	repo, err := FindGitRepoRoot(v.Root)
	if err != nil {
		return types.VersionControl{Reason: "not a git repository"}
	}

	branchRes := v.git(ctx, repo, "rev-parse", "--abbrev-ref", "HEAD")
	if branchRes.Err != nil {
		return types.VersionControl{Reason: reasonFor(branchRes.Err)}
	}
	if branchRes.ExitCode != 0 {
		// Fresh repositories have no HEAD yet
		branchRes = v.git(ctx, repo, "symbolic-ref", "--short", "HEAD")
		if branchRes.Err != nil || branchRes.ExitCode != 0 {
			return types.VersionControl{Reason: "cannot resolve HEAD"}
		}
	}

	statusRes := v.git(ctx, repo, "status", "--porcelain")
	if statusRes.Err != nil {
		return types.VersionControl{Reason: reasonFor(statusRes.Err)}
	}
	if statusRes.ExitCode != 0 {
		log.DebugH2("git status failed: %s", strings.TrimSpace(statusRes.Output))
		return types.VersionControl{Reason: fmt.Sprintf("git status exited %d", statusRes.ExitCode)}
	}

	changed := CountChangedPaths(statusRes.Output)
	return types.VersionControl{
		Available:        true,
		Branch:           strings.TrimSpace(branchRes.Output),
		ChangedFileCount: changed,
		Clean:            changed == 0,
	}
}

func (v *VCSProbe) git(ctx context.Context, repo string, args ...string) RunResult {
	return v.Runner.Run(ctx, Command{
		Name:    "git",
		Args:    append([]string{"-C", repo}, args...),
		Timeout: gitTimeout,
	})
}

// CountChangedPaths counts the entries of `git status --porcelain` output
func CountChangedPaths(porcelain string) int {
	n := 0
	for _, line := range strings.Split(porcelain, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// FindGitRepoRoot walks up from startPath to find a directory containing .git
func FindGitRepoRoot(startPath string) (string, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s: %w", startPath, err)
	}

	current := absPath
	for {
		// .git is a file inside worktrees and submodules
		if _, statErr := os.Stat(filepath.Join(current, ".git")); statErr == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no .git found from %s up to filesystem root", absPath)
		}
		current = parent
	}
}
