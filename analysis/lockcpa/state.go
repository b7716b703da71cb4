// Package lockcpa plugs the lock-state domain into the analysis engine:
// it wraps lock states as engine states, applies classified edge effects,
// and analyzes calls through reduce/expand summaries.
package lockcpa

import (
	"github.com/lokeshkvn/cpachecker/analysis/cpa"
	"github.com/lokeshkvn/cpachecker/analysis/lock"
)

// State adapts a lock state to the engine's state interface.
type State struct {
	locks *lock.State
}

// Wrap adapts a lock state for the engine.
func Wrap(ls *lock.State) State {
	return State{locks: ls}
}

// LockState returns the wrapped lock state.
func (s State) LockState() *lock.State {
	return s.locks
}

func (s State) Equal(other cpa.State) bool {
	o, sameDomain := other.(State)
	return sameDomain && s.locks.Equal(o.locks)
}

func (s State) Hash() uint32 {
	return s.locks.Hash()
}

func (s State) Cmp(other cpa.State) int {
	return s.locks.Cmp(other.(State).locks)
}

func (s State) String() string {
	return s.locks.String()
}
