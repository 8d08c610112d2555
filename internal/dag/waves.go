package dag

import (
	"fmt"
	"sort"

	"github.com/harrison/armada/internal/models"
)

// CycleError reports that the dependency graph contains a cycle. Tickets
// holds the sorted set of tickets that could not be scheduled, which is the
// implicated set rather than the exact cycle.
type CycleError struct {
	Tickets []int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among tickets: %v", e.Tickets)
}

// TopologicalWaves partitions the graph into ordered waves of mutually
// independent tickets using Kahn's algorithm. Tickets whose prerequisites are
// all satisfied by earlier waves land in the same wave, sorted for
// determinism. Each node's Wave field is assigned as it is scheduled.
//
// Returns a CycleError, and no waves, if the graph contains a cycle.
func TopologicalWaves(nodes []*Node) ([]models.Wave, error) {
	inDegree := make(map[int]int, len(nodes))
	dependents := make(map[int][]int)
	nodeByTicket := make(map[int]*Node, len(nodes))

	for _, n := range nodes {
		nodeByTicket[n.Ticket] = n
		inDegree[n.Ticket] = len(n.DependsOn)
		for _, dep := range n.DependsOn {
			dependents[dep] = append(dependents[dep], n.Ticket)
		}
	}

	remaining := make(map[int]bool, len(nodes))
	for t := range inDegree {
		remaining[t] = true
	}

	var waves []models.Wave
	waveNum := 1

	for len(remaining) > 0 {
		var ready []int
		for t := range remaining {
			if inDegree[t] == 0 {
				ready = append(ready, t)
			}
		}
		if len(ready) == 0 {
			unresolved := make([]int, 0, len(remaining))
			for t := range remaining {
				unresolved = append(unresolved, t)
			}
			sort.Ints(unresolved)
			return nil, &CycleError{Tickets: unresolved}
		}

		sort.Ints(ready)
		waves = append(waves, models.Wave{Number: waveNum, Tickets: ready})

		for _, t := range ready {
			delete(remaining, t)
			nodeByTicket[t].Wave = waveNum
			for _, child := range dependents[t] {
				inDegree[child]--
			}
		}

		waveNum++
	}

	return waves, nil
}
