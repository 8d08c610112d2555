package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/armada/internal/models"
)

func sampleRun() *models.RunResult {
	run := models.NewRunResult("run-abc")
	run.Waves = []models.Wave{
		{Number: 1, Tickets: []int{1, 2}},
		{Number: 2, Tickets: []int{3}},
	}
	run.Results[1] = &models.ExecutionResult{Ticket: 1, Status: models.StatusCompleted, BranchName: "armada/ticket-1"}
	run.Results[2] = &models.ExecutionResult{Ticket: 2, Status: models.StatusFailed, ErrorMessage: "agent failed"}
	run.Results[3] = &models.ExecutionResult{Ticket: 3, Status: models.StatusSkipped, ErrorMessage: "skipped: upstream dependency failed"}
	run.Conflicts = []models.MergeConflict{{TicketA: 1, TicketB: 2, OverlappingFiles: []string{"a.go"}}}
	run.Validation = models.ValidationPassed
	run.CompletedAt = run.StartedAt.Add(5 * time.Minute)
	return run
}

func TestStore_SaveAndLoadRun(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveRun(sampleRun()))

	runs, err := store.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	r := runs[0]
	assert.Equal(t, "run-abc", r.RunID)
	assert.Equal(t, 2, r.Waves)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 1, r.Completed)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Conflicts)
	assert.Equal(t, models.ValidationPassed, r.Validation)
}

func TestStore_TicketResults(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveRun(sampleRun()))

	records, err := store.TicketResults("run-abc")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 1, records[0].Ticket)
	assert.Equal(t, 1, records[0].Wave)
	assert.Equal(t, models.StatusCompleted, records[0].Status)
	assert.Equal(t, "armada/ticket-1", records[0].Branch)

	assert.Equal(t, 3, records[2].Ticket)
	assert.Equal(t, 2, records[2].Wave)
	assert.Equal(t, models.StatusSkipped, records[2].Status)
	assert.Equal(t, "skipped: upstream dependency failed", records[2].Error)
}

func TestStore_DuplicateRunIDRejected(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveRun(sampleRun()))
	assert.Error(t, store.SaveRun(sampleRun()))
}

func TestStore_RecentRunsOrder(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	old := sampleRun()
	old.RunID = "run-old"
	old.StartedAt = time.Now().Add(-2 * time.Hour)
	old.CompletedAt = old.StartedAt.Add(time.Minute)
	require.NoError(t, store.SaveRun(old))

	recent := sampleRun()
	recent.RunID = "run-new"
	require.NoError(t, store.SaveRun(recent))

	runs, err := store.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, "run-old", runs[1].RunID)

	limited, err := store.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestStore_EmptyHistory(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.RecentRuns(5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	records, err := store.TicketResults("missing")
	require.NoError(t, err)
	assert.Empty(t, records)
}
