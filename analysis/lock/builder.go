package lock

// Builder is the single-use mutable scratch-pad through which successor
// lock states are constructed. A builder is derived from exactly one
// state, accepts mutation calls while open, and is finalized by exactly
// one Build call. Builders are not safe for concurrent use.
type Builder struct {
	// orig is the state this builder was derived from.
	orig *State
	// scratch is the mutable working copy of the lock mapping.
	scratch map[ID]int
	// restore is the working restore link.
	restore *State
	// restored records that a Restore call occurred, advancing the restore
	// chain at build time.
	restored bool
	// infeasible marks the path as infeasible; Build yields no state.
	infeasible bool
	// built flags the terminal phase; any further use is a caller bug.
	built bool
}

func (b *Builder) checkOpen() {
	if b.built {
		panic("lock: builder used after Build")
	}
}

// Counter returns the working recursion count for the given lock.
func (b *Builder) Counter(id ID) int {
	b.checkOpen()
	return b.scratch[id]
}

// Add increments the lock's recursion count by 1, creating the entry with
// count 1 if absent.
func (b *Builder) Add(id ID) {
	b.checkOpen()
	b.scratch[id]++
}

// Free decrements the lock's recursion count by 1, removing the entry when
// it reaches 0. Releasing an unheld lock is a no-op: the concrete program
// may do so on paths the analysis cannot rule out.
func (b *Builder) Free(id ID) {
	b.checkOpen()
	if count, held := b.scratch[id]; held {
		if count > 1 {
			b.scratch[id] = count - 1
		} else {
			delete(b.scratch, id)
		}
	}
}

// Reset removes the lock's entry unconditionally, regardless of count.
func (b *Builder) Reset(id ID) {
	b.checkOpen()
	delete(b.scratch, id)
}

// Set pins the lock's recursion count to exactly n, issuing the equivalent
// incremental Add/Free calls. n = 0 is equivalent to Reset. Negative
// counts indicate a bug in the caller.
func (b *Builder) Set(id ID, n int) {
	b.checkOpen()
	if n < 0 {
		panic("lock: negative count passed to Set")
	}

	count := b.scratch[id]
	for ; count < n; count++ {
		b.Add(id)
	}
	for ; count > n; count-- {
		b.Free(id)
	}
}

// Restore replaces the lock's count with its count in the restore state,
// removing the entry when the restore state does not hold it. Build will
// advance the restore chain one link.
func (b *Builder) Restore(id ID) {
	b.checkOpen()
	if b.restore == nil {
		return
	}
	if count, held := b.restore.locks.Get(id); held {
		b.scratch[id] = count
	} else {
		delete(b.scratch, id)
	}
	b.restored = true
}

// RestoreAll replaces the entire working lock mapping with the restore
// state's mapping, fully reverting to the pre-call context.
func (b *Builder) RestoreAll() {
	b.checkOpen()
	if b.restore == nil {
		return
	}
	b.scratch = make(map[ID]int, b.restore.locks.Len())
	b.restore.ForEach(func(id ID, count int) {
		b.scratch[id] = count
	})
}

// ResetAll clears the working lock mapping; all locks are released
// unconditionally.
func (b *Builder) ResetAll() {
	b.checkOpen()
	b.scratch = make(map[ID]int)
}

// Reduce clears the restore link. Used on entry to a summarized scope, so
// the summary carries no restore obligation into the callee's state space.
func (b *Builder) Reduce() {
	b.checkOpen()
	b.restore = nil
}

// ReduceLocks removes the entries of exactly the given locks, dropping
// locks irrelevant to the summarized scope.
func (b *Builder) ReduceLocks(usedLocks map[ID]struct{}) {
	b.checkOpen()
	for id := range usedLocks {
		delete(b.scratch, id)
	}
}

// ReduceLockCounters normalizes the count of every held lock NOT in
// exceptLocks to 1, making the summary count-insensitive for locks it does
// not specifically track.
func (b *Builder) ReduceLockCounters(exceptLocks map[ID]struct{}) {
	b.checkOpen()
	reducible := make([]ID, 0, len(b.scratch))
	for id := range b.scratch {
		if _, excepted := exceptLocks[id]; !excepted {
			reducible = append(reducible, id)
		}
	}
	for _, id := range reducible {
		delete(b.scratch, id)
		b.Add(id)
	}
}

// Expand sets the restore link to the root (caller) state's own restore
// link, re-establishing the chain one level up after a call returns.
func (b *Builder) Expand(rootState *State) {
	b.checkOpen()
	b.restore = rootState.restore
}

// ExpandLocks copies the counts of every lock held in the root state but
// not in usedLocks into the working mapping, restoring caller-held locks
// that the summary had reduced away.
func (b *Builder) ExpandLocks(rootState *State, usedLocks map[ID]struct{}) {
	b.checkOpen()
	rootState.ForEach(func(id ID, count int) {
		if _, used := usedLocks[id]; !used {
			b.scratch[id] = count
		}
	})
}

// ExpandLockCounters undoes ReduceLockCounters: for every lock held in the
// root state and not in restrictedLocks, the new count is the working
// count plus the root count minus 1 (correcting for the normalization to
// 1), with non-positive results removed.
func (b *Builder) ExpandLockCounters(rootState *State, restrictedLocks map[ID]struct{}) {
	b.checkOpen()
	rootState.ForEach(func(id ID, rootCount int) {
		if _, restricted := restrictedLocks[id]; restricted {
			return
		}
		newCount := b.scratch[id] + rootCount - 1
		if newCount > 0 {
			b.scratch[id] = newCount
		} else {
			delete(b.scratch, id)
		}
	})
}

// SetRestoreState records the originating state as the state to return to,
// establishing the restore linkage at call entry.
func (b *Builder) SetRestoreState() {
	b.checkOpen()
	b.restore = b.orig
}

// SetAsFalseState marks the path infeasible; Build will yield no state.
func (b *Builder) SetAsFalseState() {
	b.checkOpen()
	b.infeasible = true
}

// Build finalizes the builder. The second result is false when the path
// was marked infeasible, in which case no successor state exists. When the
// working mapping and restore link are unchanged, the originating state
// instance itself is returned, so that unchanged transfers allocate
// nothing and reference-equality fast paths keep working.
func (b *Builder) Build() (*State, bool) {
	b.checkOpen()
	b.built = true

	if b.infeasible {
		return nil, false
	}

	if b.restored && b.restore != nil {
		// Collapse the restore chain one link as the call context unwinds.
		b.restore = b.restore.restore
	}

	if b.restore == b.orig.restore && b.scratchEqualsOrig() {
		return b.orig, true
	}

	locks := emptyLocks
	for id, count := range b.scratch {
		locks = locks.Set(id, count)
	}
	return newState(locks, b.restore), true
}

func (b *Builder) scratchEqualsOrig() bool {
	if len(b.scratch) != b.orig.locks.Len() {
		return false
	}
	for id, count := range b.scratch {
		if origCount, held := b.orig.locks.Get(id); !held || origCount != count {
			return false
		}
	}
	return true
}
