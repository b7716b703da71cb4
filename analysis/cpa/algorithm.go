package cpa

import (
	"github.com/lokeshkvn/cpachecker/analysis/cfa"
	"github.com/lokeshkvn/cpachecker/utils/pq"
	"github.com/lokeshkvn/cpachecker/utils/worklist"
)

// Waitlist determines the exploration order of the fixpoint algorithm.
type Waitlist interface {
	Add(n *Node)
	Next() *Node
	IsEmpty() bool
}

// priorityWaitlist explores states in the order given by State.Cmp.
type priorityWaitlist struct {
	queue pq.PriorityQueue[*Node]
}

// NewPriorityWaitlist creates a waitlist that explores smaller states
// (w. r. t. State.Cmp) first.
func NewPriorityWaitlist() Waitlist {
	w := &priorityWaitlist{}
	w.queue = pq.Empty[*Node](func(a, b *Node) bool {
		return a.State.Cmp(b.State) < 0
	})
	return w
}

func (w *priorityWaitlist) Add(n *Node)   { w.queue.Add(n) }
func (w *priorityWaitlist) Next() *Node   { return w.queue.GetNext() }
func (w *priorityWaitlist) IsEmpty() bool { return w.queue.IsEmpty() }

// fifoWaitlist explores states in discovery order.
type fifoWaitlist struct {
	queue worklist.Worklist[*Node]
}

// NewFifoWaitlist creates a waitlist that explores states in discovery
// order.
func NewFifoWaitlist() Waitlist {
	return &fifoWaitlist{queue: worklist.Empty[*Node]()}
}

func (w *fifoWaitlist) Add(n *Node)   { w.queue.Add(n) }
func (w *fifoWaitlist) Next() *Node   { return w.queue.GetNext() }
func (w *fifoWaitlist) IsEmpty() bool { return w.queue.IsEmpty() }

// Algorithm is the configurable fixpoint analysis: a transfer relation
// plus merge and stop operators.
type Algorithm struct {
	Transfer TransferRelation
	Merge    MergeOperator
	Stop     StopOperator
}

// Run explores the control-flow automaton from its entry with the given
// initial state until the waitlist is exhausted, returning the abstract
// reachability graph of all reached states.
func (a *Algorithm) Run(g *cfa.Graph, initial State, wl Waitlist) (*ReachedSet, error) {
	reached := NewReachedSet()
	root, _ := reached.Add(g.Entry(), initial, nil)
	wl.Add(root)

	for !wl.IsEmpty() {
		n := wl.Next()

		for _, edge := range n.Loc.Succs() {
			successors, err := a.Transfer.Successors(n.State, edge)
			if err != nil {
				return nil, err
			}

			for _, successor := range successors {
				for _, existing := range reached.AtLocation(edge.To) {
					merged := a.Merge.Merge(successor, existing.State)
					if !merged.Equal(existing.State) {
						// The merged state subsumes the existing one; replace
						// it and re-explore.
						reached.Replace(existing, merged)
						wl.Add(existing)
					}
				}

				if a.Stop.Stop(successor, reached.StatesAt(edge.To)) {
					// Covered; record the ARG edge on the covering node.
					if covering, found := reached.Find(edge.To, successor); found {
						covering.addParent(n)
					}
					continue
				}

				child, fresh := reached.Add(edge.To, successor, n)
				if fresh {
					wl.Add(child)
				}
			}
		}
	}

	return reached, nil
}
