package merge

import (
	"context"
	"os/exec"
)

// ExecShellRunner runs validation commands via the system shell.
type ExecShellRunner struct{}

// NewExecShellRunner creates a ShellRunner backed by sh -c.
func NewExecShellRunner() *ExecShellRunner {
	return &ExecShellRunner{}
}

// Run executes command via sh -c in dir and returns combined stdout/stderr.
func (r *ExecShellRunner) Run(ctx context.Context, command, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	return string(output), err
}
