// Package merge implements the merge queue: file-overlap detection across a
// wave's completed branches, best-effort sequential integration into the
// trunk, remote synchronization between waves, and post-merge validation.
package merge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harrison/armada/internal/filelock"
	"github.com/harrison/armada/internal/git"
	"github.com/harrison/armada/internal/models"
)

// validationTimeout bounds the post-merge validation command.
const validationTimeout = 10 * time.Minute

// Logger is the subset of logging the merge queue needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ShellRunner executes a validation command in a directory and returns
// combined output.
type ShellRunner interface {
	Run(ctx context.Context, command, dir string) (string, error)
}

// Queue serializes integration of wave results into the trunk. All git
// operations run in the trunk workspace; per-ticket worktrees are never
// touched here.
type Queue struct {
	trunk  *git.Trunk
	shell  ShellRunner
	lock   *filelock.FileLock
	logger Logger
	dryRun bool
}

// NewQueue creates a merge queue over the given trunk. lock may be nil to
// disable cross-process locking (tests); logger may be nil to disable output.
func NewQueue(trunk *git.Trunk, shell ShellRunner, lock *filelock.FileLock, logger Logger, dryRun bool) *Queue {
	return &Queue{trunk: trunk, shell: shell, lock: lock, logger: logger, dryRun: dryRun}
}

// DetectOverlaps computes, for each pair of branches in the wave, the files
// both modified relative to the remote base tip. Advisory only: overlaps are
// reported, never block a merge. Sequential merging plus git's own conflict
// detection is the actual safety mechanism.
func (q *Queue) DetectOverlaps(ctx context.Context, branches map[int]string) ([]models.MergeConflict, error) {
	if q.dryRun {
		return nil, nil
	}

	filesByTicket := make(map[int]map[string]bool, len(branches))
	for ticket, branch := range branches {
		files, err := q.trunk.DiffFiles(ctx, branch)
		if err != nil {
			// A branch we cannot diff is skipped here; the merge step will
			// surface the real problem.
			q.warnf("could not diff %s for ticket #%d: %v", branch, ticket, err)
			continue
		}
		set := make(map[string]bool, len(files))
		for _, f := range files {
			set[f] = true
		}
		filesByTicket[ticket] = set
	}

	tickets := make([]int, 0, len(filesByTicket))
	for t := range filesByTicket {
		tickets = append(tickets, t)
	}
	sort.Ints(tickets)

	var conflicts []models.MergeConflict
	for i, a := range tickets {
		for _, b := range tickets[i+1:] {
			var overlap []string
			for f := range filesByTicket[a] {
				if filesByTicket[b][f] {
					overlap = append(overlap, f)
				}
			}
			if len(overlap) > 0 {
				sort.Strings(overlap)
				conflicts = append(conflicts, models.MergeConflict{
					TicketA:          a,
					TicketB:          b,
					OverlappingFiles: overlap,
				})
			}
		}
	}

	return conflicts, nil
}

// MergeBranches integrates branches into the base branch one at a time, in
// sorted ticket order. A failing merge is aborted and the queue moves on; one
// broken branch never blocks the rest of the wave. If anything merged, the
// base branch is pushed once at the end.
//
// Returns the tickets whose branches merged successfully.
func (q *Queue) MergeBranches(ctx context.Context, branches map[int]string) ([]int, error) {
	if q.lock != nil {
		acquired, err := q.lock.TryLock()
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, fmt.Errorf("trunk is locked by another armada process (%s)", q.lock.Path())
		}
		defer q.lock.Unlock()
	}

	if err := q.trunk.Checkout(ctx, q.trunk.Base()); err != nil {
		return nil, fmt.Errorf("checkout %s: %w", q.trunk.Base(), err)
	}
	if err := q.trunk.Pull(ctx); err != nil {
		return nil, fmt.Errorf("pull %s: %w", q.trunk.Base(), err)
	}

	tickets := make([]int, 0, len(branches))
	for t := range branches {
		tickets = append(tickets, t)
	}
	sort.Ints(tickets)

	var merged []int
	for _, ticket := range tickets {
		branch := branches[ticket]
		q.infof("merging #%d (%s) into %s", ticket, branch, q.trunk.Base())

		message := fmt.Sprintf("Merge %s (#%d)", branch, ticket)
		if err := q.trunk.MergeNoFF(ctx, branch, message); err != nil {
			q.errorf("merge failed for #%d: %v", ticket, err)
			if abortErr := q.trunk.AbortMerge(ctx); abortErr != nil {
				q.warnf("merge --abort for #%d: %v", ticket, abortErr)
			}
			continue
		}

		merged = append(merged, ticket)
	}

	if len(merged) > 0 {
		q.infof("pushing %s with %d merged branch(es)", q.trunk.Base(), len(merged))
		if err := q.trunk.Push(ctx); err != nil {
			return merged, fmt.Errorf("push %s: %w", q.trunk.Base(), err)
		}
	}

	return merged, nil
}

// RefreshRemote fetches the remote so the next wave's worktrees are cut from
// an up-to-date trunk tip.
func (q *Queue) RefreshRemote(ctx context.Context) error {
	return q.trunk.Fetch(ctx)
}

// RunValidation checks out the base branch and runs the caller-supplied
// validation command on the fully merged trunk. A single pass/fail signal;
// the queue never retries it.
func (q *Queue) RunValidation(ctx context.Context, command string) (bool, error) {
	if q.dryRun {
		q.infof("[DRY RUN] would run validation: %s", command)
		return true, nil
	}

	if err := q.trunk.Checkout(ctx, q.trunk.Base()); err != nil {
		return false, err
	}

	q.infof("running post-merge validation: %s", command)
	ctx, cancel := context.WithTimeout(ctx, validationTimeout)
	defer cancel()

	output, err := q.shell.Run(ctx, command, q.trunk.Dir())
	if err != nil {
		excerpt := output
		if len(excerpt) > 500 {
			excerpt = excerpt[len(excerpt)-500:]
		}
		q.errorf("validation failed: %v", err)
		if excerpt != "" {
			q.errorf("validation output: %s", excerpt)
		}
		return false, nil
	}

	q.infof("validation passed")
	return true, nil
}

func (q *Queue) infof(format string, args ...interface{}) {
	if q.logger != nil {
		q.logger.Infof(format, args...)
	}
}

func (q *Queue) warnf(format string, args ...interface{}) {
	if q.logger != nil {
		q.logger.Warnf(format, args...)
	}
}

func (q *Queue) errorf(format string, args ...interface{}) {
	if q.logger != nil {
		q.logger.Errorf(format, args...)
	}
}
