// Package executor runs a wave's tickets concurrently under a bounded
// parallelism limit, with upstream-failure skip logic.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/harrison/armada/internal/models"
)

// TicketExecutor is the opaque work-agent capability: execute one ticket in
// an isolated workspace. It may be slow and may fail; it must be safe to call
// concurrently for different tickets.
type TicketExecutor interface {
	Execute(ctx context.Context, ticket int) (models.ExecutionResult, error)
}

// Logger is the subset of logging the wave executor needs.
type Logger interface {
	Infof(format string, args ...interface{})
	LogWaveStart(wave models.Wave, runnable int)
	LogTicketResult(result models.ExecutionResult)
}

// WaveExecutor executes the tickets of one wave at a time. Waves are strictly
// sequential; within a wave, tickets run concurrently up to maxParallel.
type WaveExecutor struct {
	executor    TicketExecutor
	maxParallel int
	depsFor     map[int][]int // Original prerequisite lists from graph build
	logger      Logger
}

// NewWaveExecutor constructs a WaveExecutor. depsFor must be the dependency
// index recorded at graph-build time: skip decisions use a ticket's declared
// prerequisites, not same-wave membership. logger may be nil.
func NewWaveExecutor(executor TicketExecutor, maxParallel int, depsFor map[int][]int, logger Logger) *WaveExecutor {
	return &WaveExecutor{
		executor:    executor,
		maxParallel: maxParallel,
		depsFor:     depsFor,
		logger:      logger,
	}
}

type ticketExecution struct {
	ticket int
	result models.ExecutionResult
}

// ExecuteWave runs every runnable ticket in the wave concurrently and returns
// when all have reached a terminal result. Tickets with a prerequisite in the
// failed set are skipped without invoking the work-agent. A failing or
// panicking ticket is converted into a failed result for that ticket only;
// it never aborts the wave.
func (w *WaveExecutor) ExecuteWave(ctx context.Context, wave models.Wave, failed map[int]bool) map[int]models.ExecutionResult {
	results := make(map[int]models.ExecutionResult, len(wave.Tickets))

	var runnable []int
	for _, ticket := range wave.Tickets {
		if w.upstreamFailed(ticket, failed) {
			if w.logger != nil {
				w.logger.Infof("skipping #%d: upstream dependency failed", ticket)
			}
			results[ticket] = models.SkippedResult(ticket)
			continue
		}
		runnable = append(runnable, ticket)
	}

	if len(runnable) == 0 {
		return results
	}

	if w.logger != nil {
		w.logger.LogWaveStart(wave, len(runnable))
	}

	maxParallel := w.maxParallel
	if maxParallel <= 0 || maxParallel > len(runnable) {
		maxParallel = len(runnable)
	}

	semaphore := make(chan struct{}, maxParallel)
	resultsCh := make(chan ticketExecution, len(runnable))

	var wg sync.WaitGroup
	for _, ticket := range runnable {
		wg.Add(1)
		go func(ticket int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			resultsCh <- ticketExecution{ticket: ticket, result: w.executeOne(ctx, ticket)}
		}(ticket)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	for exec := range resultsCh {
		results[exec.ticket] = exec.result
		if w.logger != nil {
			w.logger.LogTicketResult(exec.result)
		}
	}

	return results
}

// executeOne invokes the work-agent for a single ticket, converting errors
// and panics into a failed result.
func (w *WaveExecutor) executeOne(ctx context.Context, ticket int) (result models.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.FailedResult(ticket, result.StartedAt, fmt.Sprintf("panic during execution: %v", r))
		}
	}()

	result, err := w.executor.Execute(ctx, ticket)
	if result.Ticket == 0 {
		result.Ticket = ticket
	}
	if err != nil {
		if result.Status != models.StatusFailed {
			result = models.FailedResult(ticket, result.StartedAt, err.Error())
		} else if result.ErrorMessage == "" {
			result.ErrorMessage = err.Error()
		}
	}
	if result.Status == "" {
		result.Status = models.StatusFailed
		if result.ErrorMessage == "" {
			result.ErrorMessage = "work-agent returned no status"
		}
	}
	return result
}

// upstreamFailed reports whether any of the ticket's declared prerequisites
// is in the run-wide failed set.
func (w *WaveExecutor) upstreamFailed(ticket int, failed map[int]bool) bool {
	for _, dep := range w.depsFor[ticket] {
		if failed[dep] {
			return true
		}
	}
	return false
}
