// Package cpa implements a small configurable program analysis engine:
// abstract states, a transfer relation over control-flow edges, merge and
// stop operators, and the fixpoint algorithm with an abstract reachability
// graph as its result.
package cpa

import "github.com/lokeshkvn/cpachecker/analysis/cfa"

// State is an abstract state of some analysis domain.
type State interface {
	// Equal checks structural equality with another state of the same domain.
	Equal(other State) bool
	// Hash returns a structural hash consistent with Equal.
	Hash() uint32
	// Cmp establishes a total order, used by priority waitlists.
	Cmp(other State) int
	String() string
}

// TransferRelation computes the abstract successors of a state along a
// control-flow edge. An empty result means the edge is infeasible from
// this state.
type TransferRelation interface {
	Successors(state State, edge *cfa.Edge) ([]State, error)
}

// MergeOperator combines a new state with an existing state at the same
// location. The result replaces the existing state.
type MergeOperator interface {
	Merge(state, existing State) State
}

// StopOperator decides whether a new state is covered by the states
// already reached at its location.
type StopOperator interface {
	Stop(state State, reached []State) bool
}

// MergeSep never merges: each state is explored separately.
type MergeSep struct{}

func (MergeSep) Merge(state, existing State) State {
	return existing
}

// StopSep stops when an equal state has been reached before.
type StopSep struct{}

func (StopSep) Stop(state State, reached []State) bool {
	for _, r := range reached {
		if state.Equal(r) {
			return true
		}
	}
	return false
}
