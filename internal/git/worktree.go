package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Worktree is one ticket's isolated workspace. Concurrent tickets never share
// a worktree, so in-progress changes are invisible to each other.
type Worktree struct {
	runner Runner
	Ticket int
	Branch string
	Dir    string
	remote string
}

// WorktreeManager creates and removes per-ticket worktrees off the trunk
// repository.
type WorktreeManager struct {
	runner  Runner
	repoDir string // Main repository directory
	root    string // Directory under which worktrees are created
	remote  string
	base    string
}

// NewWorktreeManager creates a manager that places worktrees under root.
// If root is empty, worktrees are created next to the repository in
// "<repoDir>-worktrees".
func NewWorktreeManager(runner Runner, repoDir, root, remote, base string) *WorktreeManager {
	if root == "" {
		root = strings.TrimRight(repoDir, "/") + "-worktrees"
	}
	return &WorktreeManager{runner: runner, repoDir: repoDir, root: root, remote: remote, base: base}
}

// Create adds a worktree for ticket on a fresh branch cut from the remote
// base tip.
func (m *WorktreeManager) Create(ctx context.Context, ticket int, branch string) (*Worktree, error) {
	dir := filepath.Join(m.root, fmt.Sprintf("ticket-%d", ticket))
	start := fmt.Sprintf("%s/%s", m.remote, m.base)

	if _, err := m.runner.Run(ctx, m.repoDir, "worktree", "add", "-b", branch, dir, start); err != nil {
		return nil, fmt.Errorf("create worktree for ticket #%d: %w", ticket, err)
	}

	return &Worktree{runner: m.runner, Ticket: ticket, Branch: branch, Dir: dir, remote: m.remote}, nil
}

// Remove deletes a worktree. The branch is kept: the merge queue still needs
// it after the worktree is gone.
func (m *WorktreeManager) Remove(ctx context.Context, wt *Worktree) error {
	if _, err := m.runner.Run(ctx, m.repoDir, "worktree", "remove", "--force", wt.Dir); err != nil {
		return fmt.Errorf("remove worktree for ticket #%d: %w", wt.Ticket, err)
	}
	return nil
}

// HasChanges reports whether the worktree has uncommitted changes
// (git status --porcelain non-empty).
func (w *Worktree) HasChanges(ctx context.Context) (bool, error) {
	out, err := w.runner.Run(ctx, w.Dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// CommitAll stages and commits everything in the worktree.
func (w *Worktree) CommitAll(ctx context.Context, message string) error {
	if _, err := w.runner.Run(ctx, w.Dir, "add", "-A"); err != nil {
		return err
	}
	_, err := w.runner.Run(ctx, w.Dir, "commit", "-m", message)
	return err
}

// Push publishes the worktree's branch to the remote.
func (w *Worktree) Push(ctx context.Context) error {
	_, err := w.runner.Run(ctx, w.Dir, "push", "-u", w.remote, w.Branch)
	return err
}
