package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/armada/internal/dag"
	"github.com/harrison/armada/internal/models"
)

type scriptedExecutor struct {
	mu       sync.Mutex
	executed []int
	fail     map[int]bool
	block    map[int]bool
}

func (s *scriptedExecutor) Execute(ctx context.Context, ticket int) (models.ExecutionResult, error) {
	s.mu.Lock()
	s.executed = append(s.executed, ticket)
	s.mu.Unlock()

	if s.fail[ticket] {
		return models.ExecutionResult{}, errors.New("agent failed")
	}
	if s.block[ticket] {
		return models.ExecutionResult{Ticket: ticket, Status: models.StatusBlocked}, nil
	}
	return models.ExecutionResult{
		Ticket:     ticket,
		Status:     models.StatusCompleted,
		BranchName: fmt.Sprintf("armada/ticket-%d", ticket),
	}, nil
}

func (s *scriptedExecutor) wasExecuted(ticket int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.executed {
		if t == ticket {
			return true
		}
	}
	return false
}

type scriptedQueue struct {
	mergeCalls    []map[int]string
	overlapCalls  int
	refreshCalls  int
	validateCalls []string
	rejectMerge   map[int]bool // tickets whose merge fails
	conflicts     []models.MergeConflict
	validationOK  bool
}

func (q *scriptedQueue) DetectOverlaps(ctx context.Context, branches map[int]string) ([]models.MergeConflict, error) {
	q.overlapCalls++
	return q.conflicts, nil
}

func (q *scriptedQueue) MergeBranches(ctx context.Context, branches map[int]string) ([]int, error) {
	copied := make(map[int]string, len(branches))
	for k, v := range branches {
		copied[k] = v
	}
	q.mergeCalls = append(q.mergeCalls, copied)

	var merged []int
	for ticket := range branches {
		if !q.rejectMerge[ticket] {
			merged = append(merged, ticket)
		}
	}
	return merged, nil
}

func (q *scriptedQueue) RefreshRemote(ctx context.Context) error {
	q.refreshCalls++
	return nil
}

func (q *scriptedQueue) RunValidation(ctx context.Context, command string) (bool, error) {
	q.validateCalls = append(q.validateCalls, command)
	return q.validationOK, nil
}

func TestRun_HappyPath(t *testing.T) {
	exec := &scriptedExecutor{}
	queue := &scriptedQueue{}
	orch := New(exec, queue, nil, 2, "")

	run, err := orch.Run(context.Background(), []int{1, 2, 3}, map[int][]int{3: {1}})
	require.NoError(t, err)

	require.Len(t, run.Waves, 2)
	assert.Equal(t, []int{1, 2}, run.Waves[0].Tickets)
	assert.Equal(t, []int{3}, run.Waves[1].Tickets)

	counts := run.Counts()
	assert.Equal(t, 3, counts.Completed)
	assert.Zero(t, counts.Failed)
	assert.False(t, run.Failed())

	// One merge per wave, each followed by a remote refresh.
	require.Len(t, queue.mergeCalls, 2)
	assert.Equal(t, 2, queue.refreshCalls)
	assert.NotEmpty(t, run.RunID)
	assert.False(t, run.CompletedAt.IsZero())
}

func TestRun_GraphErrorsAreFatalBeforeExecution(t *testing.T) {
	exec := &scriptedExecutor{}
	orch := New(exec, &scriptedQueue{}, nil, 2, "")

	_, err := orch.Run(context.Background(), []int{1, 2}, map[int][]int{1: {999}})
	require.Error(t, err)
	var unknownErr *dag.UnknownDependencyError
	assert.True(t, errors.As(err, &unknownErr))
	assert.Empty(t, exec.executed)

	_, err = orch.Run(context.Background(), []int{1, 2}, map[int][]int{1: {2}, 2: {1}})
	require.Error(t, err)
	var cycleErr *dag.CycleError
	assert.True(t, errors.As(err, &cycleErr))
	assert.Empty(t, exec.executed)
}

func TestRun_FailurePropagatesToDependents(t *testing.T) {
	exec := &scriptedExecutor{fail: map[int]bool{10: true}}
	queue := &scriptedQueue{}
	orch := New(exec, queue, nil, 2, "")

	// 11 depends on 10 (wave 2), 12 depends on 11 (wave 3).
	run, err := orch.Run(context.Background(), []int{10, 11, 12}, map[int][]int{11: {10}, 12: {11}})
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, run.Results[10].Status)
	assert.Equal(t, models.StatusSkipped, run.Results[11].Status)
	assert.Equal(t, models.StatusSkipped, run.Results[12].Status)
	assert.False(t, exec.wasExecuted(11))
	assert.False(t, exec.wasExecuted(12))
	assert.True(t, run.Failed())

	// Nothing mergeable in any wave.
	assert.Empty(t, queue.mergeCalls)
}

func TestRun_MergeFailureOverridesResultAndPropagates(t *testing.T) {
	exec := &scriptedExecutor{}
	queue := &scriptedQueue{rejectMerge: map[int]bool{1: true}}
	orch := New(exec, queue, nil, 2, "")

	// 1 and 2 in wave 1; 3 depends on 1.
	run, err := orch.Run(context.Background(), []int{1, 2, 3}, map[int][]int{3: {1}})
	require.NoError(t, err)

	res := run.Results[1]
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Equal(t, "merge into trunk failed", res.ErrorMessage)

	assert.Equal(t, models.StatusCompleted, run.Results[2].Status)
	assert.Equal(t, models.StatusSkipped, run.Results[3].Status)
	assert.False(t, exec.wasExecuted(3))

	counts := run.Counts()
	assert.Equal(t, 1, counts.Failed)
	assert.Equal(t, 1, counts.Skipped)
	assert.True(t, run.Failed())
}

func TestRun_SkipsMergeWhenNoCandidates(t *testing.T) {
	exec := &scriptedExecutor{block: map[int]bool{1: true}}
	queue := &scriptedQueue{}
	orch := New(exec, queue, nil, 1, "")

	run, err := orch.Run(context.Background(), []int{1}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusBlocked, run.Results[1].Status)
	assert.Empty(t, queue.mergeCalls)
	assert.Zero(t, queue.refreshCalls)
	assert.False(t, run.Failed())
}

func TestRun_OverlapDetectionOnlyWithMultipleCandidates(t *testing.T) {
	exec := &scriptedExecutor{}
	queue := &scriptedQueue{conflicts: []models.MergeConflict{
		{TicketA: 1, TicketB: 2, OverlappingFiles: []string{"shared.go"}},
	}}
	orch := New(exec, queue, nil, 2, "")

	run, err := orch.Run(context.Background(), []int{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, queue.overlapCalls)
	require.Len(t, run.Conflicts, 1)
	assert.Equal(t, []string{"shared.go"}, run.Conflicts[0].OverlappingFiles)

	// Single candidate: no overlap check.
	queue2 := &scriptedQueue{}
	orch2 := New(&scriptedExecutor{}, queue2, nil, 2, "")
	_, err = orch2.Run(context.Background(), []int{7}, nil)
	require.NoError(t, err)
	assert.Zero(t, queue2.overlapCalls)
}

func TestRun_Validation(t *testing.T) {
	queue := &scriptedQueue{validationOK: true}
	orch := New(&scriptedExecutor{}, queue, nil, 1, "go test ./...")

	run, err := orch.Run(context.Background(), []int{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationPassed, run.Validation)
	assert.Equal(t, []string{"go test ./..."}, queue.validateCalls)

	queue2 := &scriptedQueue{validationOK: false}
	orch2 := New(&scriptedExecutor{}, queue2, nil, 1, "go test ./...")
	run2, err := orch2.Run(context.Background(), []int{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationFailed, run2.Validation)

	// Validation failure does not retroactively fail merged tickets.
	assert.Equal(t, models.StatusCompleted, run2.Results[1].Status)
	assert.False(t, run2.Failed())
}

func TestRun_NoValidationWithoutCommand(t *testing.T) {
	queue := &scriptedQueue{}
	orch := New(&scriptedExecutor{}, queue, nil, 1, "")

	run, err := orch.Run(context.Background(), []int{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationNotRun, run.Validation)
	assert.Empty(t, queue.validateCalls)
}
