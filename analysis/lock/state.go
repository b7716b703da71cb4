package lock

import (
	"sort"
	"strings"

	"github.com/lokeshkvn/cpachecker/utils"

	"github.com/benbjohnson/immutable"
)

// State is the immutable abstract lock state: a mapping from lock
// identifiers to positive recursion counts, plus an optional link to the
// state that should be restored when a summarized call returns.
//
// States are created by the analysis bootstrap (Empty) and by builders
// (State.Builder followed by Builder.Build); they are never mutated in
// place and may be shared freely.
type State struct {
	// locks maps held locks to recursion counts. No entry has count <= 0;
	// absence means the lock is not held.
	locks *immutable.Map[ID, int]
	// entries caches the lock mapping sorted by ascending identifier;
	// canonical iteration, comparison and difference output read it.
	entries []lockEntry
	// restore is the state to revert to after a summarized call, shared by
	// reference. nil when no restore obligation exists.
	restore *State
	// hash caches the structural hash, computed at construction.
	hash uint32
}

type lockEntry struct {
	id    ID
	count int
}

var emptyLocks = immutable.NewMap[ID, int](idHasher)

var emptyState = newState(emptyLocks, nil)

// Empty returns the initial lock state: no locks held, no restore link.
func Empty() *State {
	return emptyState
}

func newState(locks *immutable.Map[ID, int], restore *State) *State {
	entries := make([]lockEntry, 0, locks.Len())
	iter := locks.Iterator()
	for !iter.Done() {
		id, count, _ := iter.Next()
		entries = append(entries, lockEntry{id, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].id.Cmp(entries[j].id) < 0
	})

	s := &State{locks: locks, entries: entries, restore: restore}
	hs := make([]uint32, 0, 2*len(entries)+1)
	for _, entry := range entries {
		hs = append(hs, entry.id.Hash(), uint32(entry.count))
	}
	if restore != nil {
		hs = append(hs, restore.hash)
	}
	s.hash = utils.HashCombine(hs...)
	return s
}

// Counter returns the recursion count for the given lock, 0 if it is not held.
func (s *State) Counter(id ID) int {
	count, _ := s.locks.Get(id)
	return count
}

// Size returns the number of distinct locks held.
func (s *State) Size() int {
	return len(s.entries)
}

// HeldLocks returns the held lock identifiers in ascending order.
func (s *State) HeldLocks() []ID {
	ids := make([]ID, 0, len(s.entries))
	for _, entry := range s.entries {
		ids = append(ids, entry.id)
	}
	return ids
}

// ForEach calls do for every held lock in ascending identifier order.
func (s *State) ForEach(do func(id ID, count int)) {
	for _, entry := range s.entries {
		do(entry.id, entry.count)
	}
}

// LockMap exposes the underlying persistent lock mapping. The map is
// immutable, so the view is safe to use as a cache key component.
func (s *State) LockMap() *immutable.Map[ID, int] {
	return s.locks
}

// RestoreState returns the state this state reverts to after a summarized
// call, or nil.
func (s *State) RestoreState() *State {
	return s.restore
}

// Equal checks structural equality: equal lock mappings and equal restore
// links. Required for fixpoint deduplication.
func (s *State) Equal(other *State) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if s.hash != other.hash || len(s.entries) != len(other.entries) {
		return false
	}
	for i, entry := range s.entries {
		if entry != other.entries[i] {
			return false
		}
	}
	return s.restore.Equal(other.restore)
}

// Hash returns the structural hash of the state.
func (s *State) Hash() uint32 {
	return s.hash
}

// Cmp establishes a strict total order on lock states, used by priority
// waitlists. States holding more distinct locks sort first; ties are
// broken lexicographically by ascending lock identifier and then by
// counter difference.
func (s *State) Cmp(other *State) int {
	if result := other.Size() - s.Size(); result != 0 {
		return result
	}

	// Sizes are equal
	for i, entry := range s.entries {
		otherEntry := other.entries[i]
		if result := entry.id.Cmp(otherEntry.id); result != 0 {
			return result
		}
		if entry.count != otherEntry.count {
			return entry.count - otherEntry.count
		}
	}
	return 0
}

// Difference returns the effect sequence that transforms this state's lock
// mapping into the other's. For each lock in this state, in ascending
// identifier order, a positive counter delta emits that many releases and
// a negative delta that many acquires; locks held only by the other state
// follow, also in ascending order, as acquires. Replaying the sequence on
// a builder of this state reconstructs the other state's lock mapping.
func (s *State) Difference(other *State) []Effect {
	result := []Effect{}

	for _, entry := range s.entries {
		otherCount := other.Counter(entry.id)
		switch {
		case entry.count > otherCount:
			for i := 0; i < entry.count-otherCount; i++ {
				result = append(result, ReleaseEffectForID(entry.id))
			}
		case entry.count < otherCount:
			for i := 0; i < otherCount-entry.count; i++ {
				result = append(result, AcquireEffectForID(entry.id))
			}
		}
	}

	for _, entry := range other.entries {
		if _, held := s.locks.Get(entry.id); !held {
			for i := 0; i < entry.count; i++ {
				result = append(result, AcquireEffectForID(entry.id))
			}
		}
	}
	return result
}

// Apply replays a sequence of effects on this state, returning the
// successor state. The second result is false when an effect marked the
// path infeasible.
func (s *State) Apply(effects []Effect) (*State, bool) {
	b := s.Builder()
	for _, e := range effects {
		e.Apply(b)
	}
	return b.Build()
}

// Builder creates a fresh single-use builder seeded with this state.
func (s *State) Builder() *Builder {
	scratch := make(map[ID]int, len(s.entries))
	for _, entry := range s.entries {
		scratch[entry.id] = entry.count
	}
	return &Builder{
		orig:    s,
		scratch: scratch,
		restore: s.restore,
	}
}

func (s *State) String() string {
	if len(s.entries) == 0 {
		return colorize.Attr("no locks held")
	}
	entries := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry.id.String()+" ↦ "+colorize.Count(entry.count))
	}
	str := "{" + strings.Join(entries, ", ") + "}"
	if s.restore != nil {
		str += colorize.Attr("°")
	}
	return str
}
