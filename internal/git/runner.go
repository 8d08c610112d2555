// Package git provides the versioned-workspace layer: a command runner
// abstraction, the shared trunk workspace used by the merge queue, and
// per-ticket isolated worktrees used by the work-agent.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner abstracts git command execution for testability.
type Runner interface {
	// Run executes git with the given arguments in dir (empty = current dir)
	// and returns combined stdout/stderr.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner executes real git commands.
type ExecRunner struct{}

// NewExecRunner creates a Runner backed by the git binary on PATH.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes "git <args...>" in dir and returns combined output.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// DryRunner records the commands it would have run without executing them.
// Every call succeeds with empty output.
type DryRunner struct {
	Commands []string // "git <args...>" per call, in order
	Logf     func(format string, args ...interface{})
}

// Run records the command and reports success.
func (r *DryRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := "git " + strings.Join(args, " ")
	r.Commands = append(r.Commands, cmd)
	if r.Logf != nil {
		r.Logf("[DRY RUN] would run: %s", cmd)
	}
	return "", nil
}
