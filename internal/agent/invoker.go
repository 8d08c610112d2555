// Package agent adapts the opaque work-agent CLI to the wave executor. For
// each ticket it cuts an isolated worktree off the trunk tip, runs the agent
// inside it, commits and pushes whatever the agent produced, and reports the
// result branch.
package agent

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/harrison/armada/internal/git"
	"github.com/harrison/armada/internal/models"
)

// blockedMarker is the line the agent emits when it cannot proceed without
// operator input: "ARMADA_BLOCKED: <question>".
var blockedMarker = regexp.MustCompile(`ARMADA_BLOCKED:\s*(.+?)(?:\n|$)`)

// Logger is the subset of logging the invoker needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// CommandRunner abstracts the agent CLI invocation for testability.
type CommandRunner interface {
	// Run executes the agent binary with args in dir and returns combined output.
	Run(ctx context.Context, dir, bin string, args ...string) (string, error)
}

// execCommandRunner invokes the real agent binary.
type execCommandRunner struct{}

func (execCommandRunner) Run(ctx context.Context, dir, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// Invoker implements executor.TicketExecutor by driving the agent CLI in a
// per-ticket worktree.
type Invoker struct {
	Worktrees    *git.WorktreeManager
	AgentPath    string        // Agent binary, defaults to "claude"
	BranchPrefix string        // Result branches are "<prefix>/ticket-<id>"
	Timeout      time.Duration // Per-ticket bound on the agent call (0 = none)
	DryRun       bool
	Runner       CommandRunner // Overridable for tests; nil = real execution
	Logger       Logger        // May be nil
}

// NewInvoker creates an Invoker with default agent settings.
func NewInvoker(worktrees *git.WorktreeManager, branchPrefix string) *Invoker {
	return &Invoker{
		Worktrees:    worktrees,
		AgentPath:    "claude",
		BranchPrefix: branchPrefix,
		Runner:       execCommandRunner{},
	}
}

// BranchName returns the result-branch name for a ticket.
func (inv *Invoker) BranchName(ticket int) string {
	return fmt.Sprintf("%s/ticket-%d", inv.BranchPrefix, ticket)
}

// BuildCommandArgs constructs the agent CLI arguments for one ticket.
func (inv *Invoker) BuildCommandArgs(ticket int) []string {
	prompt := fmt.Sprintf(
		"Implement ticket #%d in this repository. Make the necessary code changes "+
			"but do not commit; the orchestrator commits for you. If you cannot "+
			"proceed without more information, output exactly: ARMADA_BLOCKED: <your question>",
		ticket,
	)
	return []string{
		"-p", prompt,
		"--dangerously-skip-permissions",
	}
}

// Execute runs the agent for one ticket in its own worktree. Satisfies
// executor.TicketExecutor.
func (inv *Invoker) Execute(ctx context.Context, ticket int) (models.ExecutionResult, error) {
	started := time.Now()
	branch := inv.BranchName(ticket)

	if inv.DryRun {
		inv.infof("[DRY RUN] would run agent for ticket #%d on %s", ticket, branch)
		return models.ExecutionResult{
			Ticket:      ticket,
			Status:      models.StatusCompleted,
			BranchName:  branch,
			StartedAt:   started,
			CompletedAt: time.Now(),
		}, nil
	}

	wt, err := inv.Worktrees.Create(ctx, ticket, branch)
	if err != nil {
		return models.FailedResult(ticket, started, err.Error()), nil
	}
	defer func() {
		if rmErr := inv.Worktrees.Remove(context.WithoutCancel(ctx), wt); rmErr != nil {
			inv.warnf("cleanup worktree for #%d: %v", ticket, rmErr)
		}
	}()

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	inv.infof("running agent for ticket #%d in %s", ticket, wt.Dir)
	output, err := inv.Runner.Run(ctx, wt.Dir, inv.AgentPath, inv.BuildCommandArgs(ticket)...)
	if err != nil {
		return models.FailedResult(ticket, started, fmt.Sprintf("agent failed: %v", err)), nil
	}

	if m := blockedMarker.FindStringSubmatch(output); m != nil {
		return models.ExecutionResult{
			Ticket:           ticket,
			Status:           models.StatusBlocked,
			BlockingQuestion: strings.TrimSpace(m[1]),
			StartedAt:        started,
			CompletedAt:      time.Now(),
		}, nil
	}

	changed, err := wt.HasChanges(ctx)
	if err != nil {
		return models.FailedResult(ticket, started, err.Error()), nil
	}
	if !changed {
		return models.FailedResult(ticket, started, "agent produced no changes"), nil
	}

	if err := wt.CommitAll(ctx, fmt.Sprintf("Ticket #%d: automated changes", ticket)); err != nil {
		return models.FailedResult(ticket, started, fmt.Sprintf("commit: %v", err)), nil
	}
	if err := wt.Push(ctx); err != nil {
		return models.FailedResult(ticket, started, fmt.Sprintf("push %s: %v", branch, err)), nil
	}

	return models.ExecutionResult{
		Ticket:      ticket,
		Status:      models.StatusCompleted,
		BranchName:  branch,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}, nil
}

func (inv *Invoker) infof(format string, args ...interface{}) {
	if inv.Logger != nil {
		inv.Logger.Infof(format, args...)
	}
}

func (inv *Invoker) warnf(format string, args ...interface{}) {
	if inv.Logger != nil {
		inv.Logger.Warnf(format, args...)
	}
}
