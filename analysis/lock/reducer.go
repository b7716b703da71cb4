package lock

// ReductionStrategy selects how a caller state is stripped down before a
// summarized scope is entered.
type ReductionStrategy uint8

const (
	// ReduceDropLocks removes locks irrelevant to the summarized scope
	// entirely and copies them back from the caller at return.
	ReduceDropLocks ReductionStrategy = iota
	// ReduceNormalizeCounters keeps irrelevant locks but normalizes their
	// recursion counts to 1, correcting for it at return. Keeps the
	// summary count-insensitive for untracked locks without forgetting
	// that they are held.
	ReduceNormalizeCounters
)

// Reducer implements the reduce/expand pairing for summary-based
// interprocedural analysis. At call entry the caller's state is stripped
// down to the fragment relevant for the callee; at call return the callee
// summary's exit state is reconstituted with the caller-specific context.
type Reducer struct {
	Strategy ReductionStrategy
}

// Irrelevant returns the locks held by state that are not in usedLocks,
// i. e. the locks a summary for a scope using only usedLocks may drop.
func (Reducer) Irrelevant(state *State, usedLocks map[ID]struct{}) map[ID]struct{} {
	irrelevant := map[ID]struct{}{}
	state.ForEach(func(id ID, _ int) {
		if _, used := usedLocks[id]; !used {
			irrelevant[id] = struct{}{}
		}
	})
	return irrelevant
}

// ReduceEntry turns a caller-side call-entry state into the callee's
// summarizable entry state: the restore obligation is cleared and the
// locks irrelevant to the callee are dropped or normalized according to
// the strategy.
func (r Reducer) ReduceEntry(callerState *State, usedLocks map[ID]struct{}) *State {
	b := callerState.Builder()
	b.Reduce()
	switch r.Strategy {
	case ReduceNormalizeCounters:
		b.ReduceLockCounters(usedLocks)
	default:
		b.ReduceLocks(r.Irrelevant(callerState, usedLocks))
	}
	// Reduction never aborts: every operation above is total.
	reduced, _ := b.Build()
	return reduced
}

// ExpandReturn reconstitutes a caller-side state from a callee summary's
// exit state. rootState is the caller's state at the call site; the
// restore chain is re-established one level up and the locks the summary
// dropped are copied back from the root, with the counter correction
// matching ReduceEntry's normalization.
func (r Reducer) ExpandReturn(rootState, exitState *State, usedLocks map[ID]struct{}) *State {
	b := exitState.Builder()
	b.Expand(rootState)
	switch r.Strategy {
	case ReduceNormalizeCounters:
		b.ExpandLockCounters(rootState, usedLocks)
	default:
		b.ExpandLocks(rootState, usedLocks)
	}
	expanded, _ := b.Build()
	return expanded
}
