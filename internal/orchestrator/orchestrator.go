// Package orchestrator drives the full DAG pipeline: graph build, wave
// planning, per-wave execution and merging, failure propagation, and the
// optional post-merge validation pass.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/armada/internal/dag"
	"github.com/harrison/armada/internal/executor"
	"github.com/harrison/armada/internal/models"
)

// MergeQueue is the integration surface the orchestrator drives after each
// wave. Implemented by merge.Queue; faked in tests.
type MergeQueue interface {
	DetectOverlaps(ctx context.Context, branches map[int]string) ([]models.MergeConflict, error)
	MergeBranches(ctx context.Context, branches map[int]string) ([]int, error)
	RefreshRemote(ctx context.Context) error
	RunValidation(ctx context.Context, command string) (bool, error)
}

// Logger receives every observable event of a run as it occurs.
type Logger interface {
	executor.Logger
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	LogPlan(waves []models.Wave, totalTickets int)
	LogConflict(conflict models.MergeConflict)
	LogValidation(outcome models.ValidationOutcome)
	LogSummary(run *models.RunResult)
}

// Orchestrator owns all mutable run-wide state: the accumulated failed-ticket
// set and the per-ticket result map live on the RunResult it builds, never as
// package globals.
type Orchestrator struct {
	executor    executor.TicketExecutor
	queue       MergeQueue
	logger      Logger
	maxParallel int
	testCommand string
}

// New constructs an Orchestrator. testCommand may be empty to skip post-merge
// validation; logger may be nil.
func New(exec executor.TicketExecutor, queue MergeQueue, logger Logger, maxParallel int, testCommand string) *Orchestrator {
	return &Orchestrator{
		executor:    exec,
		queue:       queue,
		logger:      logger,
		maxParallel: maxParallel,
		testCommand: testCommand,
	}
}

// Run executes the full pipeline for the given tickets and dependency map.
//
// Graph-level problems (unknown prerequisite, cycle) are returned as errors
// before any ticket executes. Everything after planning is converted to
// result data: per-ticket failures, merge failures, and validation outcomes
// land on the RunResult, and the returned error stays nil.
func (o *Orchestrator) Run(ctx context.Context, tickets []int, deps map[int][]int) (*models.RunResult, error) {
	nodes, err := dag.BuildGraph(tickets, deps)
	if err != nil {
		return nil, err
	}
	waves, err := dag.TopologicalWaves(nodes)
	if err != nil {
		return nil, err
	}

	run := models.NewRunResult(uuid.NewString())
	run.Waves = waves

	if o.logger != nil {
		o.logger.LogPlan(waves, len(tickets))
	}

	waveExec := executor.NewWaveExecutor(o.executor, o.maxParallel, dag.DependencyIndex(nodes), o.logger)
	failed := make(map[int]bool)

	for _, wave := range waves {
		waveResults := waveExec.ExecuteWave(ctx, wave, failed)

		branches := make(map[int]string)
		for ticket, res := range waveResults {
			res := res
			run.Results[ticket] = &res
			switch {
			case res.Mergeable():
				branches[ticket] = res.BranchName
			case res.Status == models.StatusFailed, res.Status == models.StatusSkipped:
				failed[ticket] = true
			}
		}

		if len(branches) == 0 {
			o.infof("no branches to merge in wave %d", wave.Number)
			continue
		}

		if len(branches) > 1 {
			conflicts, err := o.queue.DetectOverlaps(ctx, branches)
			if err != nil {
				o.warnf("overlap detection failed for wave %d: %v", wave.Number, err)
			}
			run.Conflicts = append(run.Conflicts, conflicts...)
			if o.logger != nil {
				for _, c := range conflicts {
					o.logger.LogConflict(c)
				}
			}
		}

		merged, err := o.queue.MergeBranches(ctx, branches)
		if err != nil {
			o.errorf("merge queue error in wave %d: %v", wave.Number, err)
		}
		mergedSet := make(map[int]bool, len(merged))
		for _, t := range merged {
			mergedSet[t] = true
		}
		for ticket := range branches {
			if mergedSet[ticket] {
				continue
			}
			failed[ticket] = true
			run.Results[ticket].Status = models.StatusFailed
			run.Results[ticket].ErrorMessage = "merge into trunk failed"
			if o.logger != nil {
				o.logger.LogTicketResult(*run.Results[ticket])
			}
		}

		if len(merged) > 0 {
			if err := o.queue.RefreshRemote(ctx); err != nil {
				o.warnf("remote refresh after wave %d failed: %v", wave.Number, err)
			}
		}
	}

	if o.testCommand != "" {
		passed, err := o.queue.RunValidation(ctx, o.testCommand)
		switch {
		case err != nil:
			o.errorf("validation could not run: %v", err)
			run.Validation = models.ValidationFailed
		case passed:
			run.Validation = models.ValidationPassed
		default:
			run.Validation = models.ValidationFailed
		}
		if o.logger != nil {
			o.logger.LogValidation(run.Validation)
		}
	}

	run.CompletedAt = time.Now()
	if o.logger != nil {
		o.logger.LogSummary(run)
	}
	return run, nil
}

func (o *Orchestrator) infof(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Infof(format, args...)
	}
}

func (o *Orchestrator) warnf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Warnf(format, args...)
	}
}

func (o *Orchestrator) errorf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Errorf(format, args...)
	}
}
