package lockcpa

import (
	"github.com/lokeshkvn/cpachecker/analysis/cfa"
	"github.com/lokeshkvn/cpachecker/analysis/cpa"
)

// Transfer is the lock-domain transfer relation: effect edges are replayed
// on a builder of the predecessor state, call edges go through the summary
// manager.
type Transfer struct {
	Summaries *SummaryManager
}

var _ cpa.TransferRelation = (*Transfer)(nil)

func (t *Transfer) Successors(state cpa.State, edge *cfa.Edge) ([]cpa.State, error) {
	ls := state.(State).LockState()

	if edge.Call != nil {
		exits, err := t.Summaries.Apply(ls, edge.Call)
		if err != nil {
			return nil, err
		}
		successors := make([]cpa.State, 0, len(exits))
		for _, exit := range exits {
			successors = append(successors, Wrap(exit))
		}
		return successors, nil
	}

	successor, feasible := ls.Apply(edge.Effects)
	if !feasible {
		return nil, nil
	}
	return []cpa.State{Wrap(successor)}, nil
}
