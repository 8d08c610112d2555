package models

import (
	"fmt"
	"time"
)

// Wave is an ordered set of tickets with no unmet prerequisites relative to
// all earlier waves. Membership is fixed once computed; tickets within a wave
// run concurrently.
type Wave struct {
	Number  int   // 1-based wave number in execution order
	Tickets []int // Sorted ticket identifiers
}

// Name returns the display name for the wave (e.g. "Wave 2").
func (w Wave) Name() string {
	return fmt.Sprintf("Wave %d", w.Number)
}

// MergeConflict reports that two branches in the same wave modified at least
// one common file. Advisory only: it never blocks a merge.
type MergeConflict struct {
	TicketA          int
	TicketB          int
	OverlappingFiles []string // Sorted file paths both branches touched
}

// ValidationOutcome is the tri-state result of the post-merge validation run.
type ValidationOutcome string

// Validation outcome constants
const (
	ValidationNotRun ValidationOutcome = "not_run"
	ValidationPassed ValidationOutcome = "passed"
	ValidationFailed ValidationOutcome = "failed"
)

// RunResult aggregates everything observed during one full DAG run.
type RunResult struct {
	RunID       string                   // Unique identifier for this run
	Waves       []Wave                   // Computed wave plan, in execution order
	Results     map[int]*ExecutionResult // Terminal result per ticket
	Conflicts   []MergeConflict          // File-overlap reports across all waves
	Validation  ValidationOutcome        // Post-merge validation outcome
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewRunResult creates an empty RunResult with the clock started.
func NewRunResult(runID string) *RunResult {
	return &RunResult{
		RunID:      runID,
		Results:    make(map[int]*ExecutionResult),
		Validation: ValidationNotRun,
		StartedAt:  time.Now(),
	}
}

// RunCounts holds per-status ticket totals for a run.
type RunCounts struct {
	Total     int
	Completed int
	Failed    int
	Blocked   int
	Skipped   int
}

// Counts tallies terminal statuses across all recorded results.
func (r *RunResult) Counts() RunCounts {
	c := RunCounts{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Status {
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		case StatusBlocked:
			c.Blocked++
		case StatusSkipped:
			c.Skipped++
		}
	}
	return c
}

// Failed reports whether the run as a whole should be considered failed:
// any ticket ended in a failed or skipped state.
func (r *RunResult) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed || res.Status == StatusSkipped {
			return true
		}
	}
	return false
}

// WaveOf returns the wave number a ticket was scheduled in, or 0 if the
// ticket is not part of this run's plan.
func (r *RunResult) WaveOf(ticket int) int {
	for _, w := range r.Waves {
		for _, t := range w.Tickets {
			if t == ticket {
				return w.Number
			}
		}
	}
	return 0
}

// Duration returns the wall-clock duration of the run.
func (r *RunResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
