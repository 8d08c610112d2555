// Package models defines the core data types shared across armada's
// scheduling, execution, and merge components.
package models

import (
	"fmt"
	"time"
)

// TicketStatus describes the terminal (or in-flight) state of a ticket.
type TicketStatus string

// Ticket status constants
const (
	StatusPending    TicketStatus = "pending"
	StatusInProgress TicketStatus = "in_progress"
	StatusCompleted  TicketStatus = "completed"
	StatusFailed     TicketStatus = "failed"
	StatusBlocked    TicketStatus = "blocked"
	StatusSkipped    TicketStatus = "skipped"
)

// Terminal reports whether the status is a terminal state for a run.
func (s TicketStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBlocked, StatusSkipped:
		return true
	}
	return false
}

// ExecutionResult records the outcome of running the work-agent for one ticket.
// Results are created once per ticket per run. The only mutation after creation
// is the merge-failure override applied by the orchestrator when a completed
// ticket's branch fails to integrate.
type ExecutionResult struct {
	Ticket           int          // Ticket identifier
	Status           TicketStatus // Terminal status
	BranchName       string       // Result branch, required for merge eligibility
	ErrorMessage     string       // Failure or skip detail
	BlockingQuestion string       // Set when the agent reports it is blocked
	StartedAt        time.Time
	CompletedAt      time.Time
}

// Mergeable reports whether this result is eligible for the merge queue:
// the ticket completed and produced a named result branch.
func (r ExecutionResult) Mergeable() bool {
	return r.Status == StatusCompleted && r.BranchName != ""
}

// Summary returns a one-line human-readable description of the result.
func (r ExecutionResult) Summary() string {
	s := fmt.Sprintf("Ticket #%d: %s", r.Ticket, r.Status)
	if r.BranchName != "" {
		s += fmt.Sprintf(" (%s)", r.BranchName)
	}
	if r.BlockingQuestion != "" {
		s += fmt.Sprintf(" blocked: %s", r.BlockingQuestion)
	}
	if r.ErrorMessage != "" {
		s += fmt.Sprintf(" error: %s", r.ErrorMessage)
	}
	return s
}

// SkippedResult builds the synthetic result recorded for a ticket whose
// upstream dependency failed. The work-agent is never invoked for it.
func SkippedResult(ticket int) ExecutionResult {
	now := time.Now()
	return ExecutionResult{
		Ticket:       ticket,
		Status:       StatusSkipped,
		ErrorMessage: "skipped: upstream dependency failed",
		StartedAt:    now,
		CompletedAt:  now,
	}
}

// FailedResult builds a failed result carrying the given error detail.
func FailedResult(ticket int, started time.Time, detail string) ExecutionResult {
	return ExecutionResult{
		Ticket:       ticket,
		Status:       StatusFailed,
		ErrorMessage: detail,
		StartedAt:    started,
		CompletedAt:  time.Now(),
	}
}
