package lockcpa

import (
	"github.com/lokeshkvn/cpachecker/analysis/cfa"
	"github.com/lokeshkvn/cpachecker/analysis/cpa"
	"github.com/lokeshkvn/cpachecker/analysis/lock"
	"github.com/lokeshkvn/cpachecker/utils"
	"github.com/lokeshkvn/cpachecker/utils/hmap"
	"github.com/lokeshkvn/cpachecker/utils/worklist"

	"golang.org/x/tools/go/ssa"
)

// SummaryManager computes and caches function summaries. A summary maps a
// reduced call-entry lock state to the set of lock states reachable at the
// callee's exit; callers expand the exit states back into their own
// context.
type SummaryManager struct {
	builder     *cfa.Builder
	reducer     lock.Reducer
	newWaitlist func() cpa.Waitlist

	usedLocks map[*ssa.Function]map[lock.ID]struct{}
	cache     *hmap.Map[summaryKey, []*lock.State]
	// inProgress guards against recursive summary requests; a cycle falls
	// back to the identity summary.
	inProgress *hmap.Map[summaryKey, bool]
}

type summaryKey struct {
	fn    *ssa.Function
	entry *lock.State
}

type summaryKeyHasher struct {
	fns utils.PointerHasher[*ssa.Function]
}

func (h summaryKeyHasher) Hash(k summaryKey) uint32 {
	return utils.HashCombine(h.fns.Hash(k.fn), k.entry.Hash())
}

func (h summaryKeyHasher) Equal(a, b summaryKey) bool {
	return a.fn == b.fn && a.entry.Equal(b.entry)
}

// NewSummaryManager creates a summary manager over the given CFA builder,
// with the given reduction strategy and waitlist factory.
func NewSummaryManager(
	builder *cfa.Builder,
	strategy lock.ReductionStrategy,
	newWaitlist func() cpa.Waitlist,
) *SummaryManager {
	return &SummaryManager{
		builder:     builder,
		reducer:     lock.Reducer{Strategy: strategy},
		newWaitlist: newWaitlist,
		usedLocks:   map[*ssa.Function]map[lock.ID]struct{}{},
		cache:       hmap.NewMap[[]*lock.State, summaryKey](summaryKeyHasher{}),
		inProgress:  hmap.NewMap[bool, summaryKey](summaryKeyHasher{}),
	}
}

// UsedLocks returns the lock identifiers the function touches, directly or
// through the functions it statically calls.
func (m *SummaryManager) UsedLocks(fn *ssa.Function) map[lock.ID]struct{} {
	if used, computed := m.usedLocks[fn]; computed {
		return used
	}

	used := map[lock.ID]struct{}{}
	seen := map[*ssa.Function]struct{}{}
	worklist.Start(fn, func(next *ssa.Function, add func(el *ssa.Function)) {
		if _, visited := seen[next]; visited {
			return
		}
		seen[next] = struct{}{}

		m.builder.ForFunction(next).ForEachEdge(func(e *cfa.Edge) {
			for _, effect := range e.Effects {
				for _, id := range lock.EffectIDs(effect) {
					used[id] = struct{}{}
				}
			}
			if e.Call != nil {
				add(e.Call)
			}
		})
	})

	m.usedLocks[fn] = used
	return used
}

// Apply computes the caller-side successor states of a summarized call:
// the caller state is reduced to the callee-relevant fragment, the callee
// is analyzed from the reduced entry, and every exit state is expanded
// back into the caller's context.
func (m *SummaryManager) Apply(callerState *lock.State, callee *ssa.Function) ([]*lock.State, error) {
	used := m.UsedLocks(callee)
	entry := m.reducer.ReduceEntry(callerState, used)

	exits, err := m.summarize(callee, entry)
	if err != nil {
		return nil, err
	}

	results := make([]*lock.State, 0, len(exits))
	for _, exit := range exits {
		results = append(results, m.reducer.ExpandReturn(callerState, exit, used))
	}
	return results, nil
}

func (m *SummaryManager) summarize(fn *ssa.Function, entry *lock.State) ([]*lock.State, error) {
	key := summaryKey{fn, entry}
	if exits, cached := m.cache.GetOk(key); cached {
		return exits, nil
	}
	if m.inProgress.Get(key) {
		// Recursive call cycle; approximate the callee as lock-neutral.
		return []*lock.State{entry}, nil
	}
	m.inProgress.Set(key, true)
	defer m.inProgress.Delete(key)

	g := m.builder.ForFunction(fn)
	algorithm := &cpa.Algorithm{
		Transfer: &Transfer{Summaries: m},
		Merge:    cpa.MergeSep{},
		Stop:     cpa.StopSep{},
	}
	reached, err := algorithm.Run(g, Wrap(entry), m.newWaitlist())
	if err != nil {
		return nil, err
	}

	// A function with no reachable exit (e. g. an infinite loop) yields an
	// empty summary; the call never returns.
	exits := make([]*lock.State, 0)
	for _, exitState := range reached.StatesAt(g.Exit()) {
		exits = append(exits, exitState.(State).LockState())
	}

	m.cache.Set(key, exits)
	return exits, nil
}
