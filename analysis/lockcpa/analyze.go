package lockcpa

import (
	"fmt"

	"github.com/lokeshkvn/cpachecker/analysis/cfa"
	"github.com/lokeshkvn/cpachecker/analysis/cpa"
	"github.com/lokeshkvn/cpachecker/analysis/lock"
	"github.com/lokeshkvn/cpachecker/analysis/lockconf"

	"golang.org/x/tools/go/ssa"
)

// Analysis bundles the configured pieces of a lock-state analysis run.
type Analysis struct {
	Builder   *cfa.Builder
	Summaries *SummaryManager

	newWaitlist func() cpa.Waitlist
}

// NewAnalysis configures a lock-state analysis with the given annotation
// configuration (may be nil), reduction strategy and waitlist factory.
func NewAnalysis(
	conf *lockconf.Config,
	strategy lock.ReductionStrategy,
	newWaitlist func() cpa.Waitlist,
) *Analysis {
	builder := cfa.NewBuilder(conf)
	return &Analysis{
		Builder:     builder,
		Summaries:   NewSummaryManager(builder, strategy, newWaitlist),
		newWaitlist: newWaitlist,
	}
}

// Analyze runs the lock-state analysis of fn to fixpoint from the empty
// lock state and returns the abstract reachability graph.
func (a *Analysis) Analyze(fn *ssa.Function) (*cpa.ReachedSet, error) {
	if len(fn.Blocks) == 0 {
		return nil, fmt.Errorf("function %s has no body", fn)
	}

	algorithm := &cpa.Algorithm{
		Transfer: &Transfer{Summaries: a.Summaries},
		Merge:    cpa.MergeSep{},
		Stop:     cpa.StopSep{},
	}
	return algorithm.Run(a.Builder.ForFunction(fn), Wrap(lock.Empty()), a.newWaitlist())
}
