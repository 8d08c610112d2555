package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/armada/internal/models"
)

func mustWaves(t *testing.T, tickets []int, deps map[int][]int) ([]models.Wave, []*Node) {
	t.Helper()
	nodes, err := BuildGraph(tickets, deps)
	require.NoError(t, err)
	waves, err := TopologicalWaves(nodes)
	require.NoError(t, err)
	return waves, nodes
}

func TestTopologicalWaves_IndependentTicketsShareOneWave(t *testing.T) {
	waves, _ := mustWaves(t, []int{3, 1, 2}, nil)

	require.Len(t, waves, 1)
	assert.Equal(t, 1, waves[0].Number)
	assert.Equal(t, []int{1, 2, 3}, waves[0].Tickets)
}

func TestTopologicalWaves_DependencyChain(t *testing.T) {
	// 197 depends on 200, 198 depends on 197.
	deps, err := ParseDeps("197:200,198:197")
	require.NoError(t, err)

	waves, _ := mustWaves(t, []int{197, 198, 199, 200, 201, 202}, deps)

	require.Len(t, waves, 3)
	assert.Equal(t, []int{199, 200, 201, 202}, waves[0].Tickets)
	assert.Equal(t, []int{197}, waves[1].Tickets)
	assert.Equal(t, []int{198}, waves[2].Tickets)
}

func TestTopologicalWaves_Diamond(t *testing.T) {
	waves, _ := mustWaves(t, []int{1, 2, 3, 4}, map[int][]int{
		2: {1},
		3: {1},
		4: {2, 3},
	})

	require.Len(t, waves, 3)
	assert.Equal(t, []int{1}, waves[0].Tickets)
	assert.Equal(t, []int{2, 3}, waves[1].Tickets)
	assert.Equal(t, []int{4}, waves[2].Tickets)
}

func TestTopologicalWaves_AssignsNodeWaves(t *testing.T) {
	waves, nodes := mustWaves(t, []int{1, 2, 3, 4}, map[int][]int{
		2: {1},
		3: {1},
		4: {2, 3},
	})
	require.Len(t, waves, 3)

	waveOf := make(map[int]int)
	for _, n := range nodes {
		assert.NotEqual(t, WaveUnassigned, n.Wave)
		waveOf[n.Ticket] = n.Wave
	}

	// Every ticket appears in exactly one wave and prerequisites are always
	// strictly earlier.
	seen := make(map[int]int)
	for _, w := range waves {
		for _, ticket := range w.Tickets {
			seen[ticket]++
			assert.Equal(t, w.Number, waveOf[ticket])
		}
	}
	for _, n := range nodes {
		assert.Equal(t, 1, seen[n.Ticket])
		for _, dep := range n.DependsOn {
			assert.Less(t, waveOf[dep], waveOf[n.Ticket],
				"prerequisite #%d must be scheduled before #%d", dep, n.Ticket)
		}
	}
}

func TestTopologicalWaves_Deterministic(t *testing.T) {
	tickets := []int{9, 5, 7, 3, 8, 1}
	deps := map[int][]int{7: {5}, 8: {5, 3}, 9: {7}}

	first, _ := mustWaves(t, tickets, deps)
	second, _ := mustWaves(t, tickets, deps)

	assert.Equal(t, first, second)
}

func TestTopologicalWaves_Cycle(t *testing.T) {
	nodes, err := BuildGraph([]int{1, 2, 3}, map[int][]int{
		1: {2},
		2: {1},
	})
	require.NoError(t, err)

	waves, err := TopologicalWaves(nodes)
	require.Error(t, err)
	assert.Nil(t, waves)

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []int{1, 2}, cycleErr.Tickets)
}

func TestTopologicalWaves_SelfDependency(t *testing.T) {
	nodes, err := BuildGraph([]int{1}, map[int][]int{1: {1}})
	require.NoError(t, err)

	waves, err := TopologicalWaves(nodes)
	require.Error(t, err)
	assert.Nil(t, waves)

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []int{1}, cycleErr.Tickets)
}

func TestTopologicalWaves_Empty(t *testing.T) {
	waves, err := TopologicalWaves(nil)
	require.NoError(t, err)
	assert.Empty(t, waves)
}
