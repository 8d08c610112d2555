package git

import (
	"context"
	"fmt"
	"strings"
)

// Trunk is the shared integration workspace. All merge-queue operations run
// here, never in a ticket worktree; keeping trunk operations on a dedicated
// type prevents that mixup at compile time.
type Trunk struct {
	runner Runner
	dir    string
	remote string
	base   string
}

// NewTrunk creates a Trunk rooted at dir, integrating into remote/base.
func NewTrunk(runner Runner, dir, remote, base string) *Trunk {
	return &Trunk{runner: runner, dir: dir, remote: remote, base: base}
}

// Dir returns the trunk working directory.
func (t *Trunk) Dir() string { return t.dir }

// Base returns the integration branch name.
func (t *Trunk) Base() string { return t.base }

// Remote returns the remote name.
func (t *Trunk) Remote() string { return t.remote }

// Checkout switches the trunk to ref.
func (t *Trunk) Checkout(ctx context.Context, ref string) error {
	_, err := t.runner.Run(ctx, t.dir, "checkout", ref)
	return err
}

// Pull fast-forwards the base branch from the remote.
func (t *Trunk) Pull(ctx context.Context) error {
	_, err := t.runner.Run(ctx, t.dir, "pull", t.remote, t.base)
	return err
}

// Fetch refreshes the remote view so the next wave's worktrees start from an
// up-to-date tip.
func (t *Trunk) Fetch(ctx context.Context) error {
	_, err := t.runner.Run(ctx, t.dir, "fetch", t.remote)
	return err
}

// Push publishes the base branch to the remote.
func (t *Trunk) Push(ctx context.Context) error {
	_, err := t.runner.Run(ctx, t.dir, "push", t.remote, t.base)
	return err
}

// MergeNoFF merges branch into the current branch with --no-ff so each
// ticket's contribution stays a distinguishable unit of history.
func (t *Trunk) MergeNoFF(ctx context.Context, branch, message string) error {
	_, err := t.runner.Run(ctx, t.dir, "merge", "--no-ff", "-m", message, branch)
	return err
}

// AbortMerge restores the trunk to its pre-merge state after a failed merge.
func (t *Trunk) AbortMerge(ctx context.Context) error {
	_, err := t.runner.Run(ctx, t.dir, "merge", "--abort")
	return err
}

// DiffFiles returns the set of file paths branch modified relative to the
// remote base tip (git diff --name-only remote/base...branch).
func (t *Trunk) DiffFiles(ctx context.Context, branch string) ([]string, error) {
	base := fmt.Sprintf("%s/%s", t.remote, t.base)
	out, err := t.runner.Run(ctx, t.dir, "diff", "--name-only", base+"..."+branch)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if f := strings.TrimSpace(line); f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}
