package dag

import "fmt"

// WaveUnassigned is the sentinel wave number for a node that has not yet been
// scheduled by TopologicalWaves.
const WaveUnassigned = -1

// Node is one ticket's scheduling state in the dependency graph. The Wave
// field is mutated exactly once, by TopologicalWaves, when the ticket becomes
// runnable.
type Node struct {
	Ticket    int
	DependsOn []int
	Wave      int
}

// UnknownDependencyError reports a ticket whose declared prerequisite is not
// part of the run. A malformed plan must not execute partially, so this is
// fatal before any ticket runs.
type UnknownDependencyError struct {
	Ticket     int
	Dependency int
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("ticket #%d depends on #%d, which is not in the ticket list", e.Ticket, e.Dependency)
}

// BuildGraph creates one Node per ticket, in input order, carrying its
// (possibly empty) prerequisite list. Every prerequisite must name a ticket
// in the run; the first violation returns an UnknownDependencyError.
func BuildGraph(tickets []int, deps map[int][]int) ([]*Node, error) {
	known := make(map[int]bool, len(tickets))
	for _, t := range tickets {
		known[t] = true
	}

	nodes := make([]*Node, 0, len(tickets))
	for _, t := range tickets {
		nodeDeps := deps[t]
		for _, dep := range nodeDeps {
			if !known[dep] {
				return nil, &UnknownDependencyError{Ticket: t, Dependency: dep}
			}
		}
		nodes = append(nodes, &Node{Ticket: t, DependsOn: nodeDeps, Wave: WaveUnassigned})
	}

	return nodes, nil
}

// DependencyIndex returns a ticket -> prerequisite-list lookup built from the
// graph nodes. The wave executor uses it for upstream-failure skip checks.
func DependencyIndex(nodes []*Node) map[int][]int {
	idx := make(map[int][]int, len(nodes))
	for _, n := range nodes {
		idx[n.Ticket] = n.DependsOn
	}
	return idx
}
