package cpa

import (
	"github.com/lokeshkvn/cpachecker/analysis/cfa"
	"github.com/lokeshkvn/cpachecker/utils"
	"github.com/lokeshkvn/cpachecker/utils/hmap"
)

// Node is an abstract reachability graph node: an abstract state paired
// with the control location at which it was reached.
type Node struct {
	ID    int
	Loc   *cfa.Node
	State State

	parents  []*Node
	children []*Node
}

// Parents returns the ARG nodes this node was reached from.
func (n *Node) Parents() []*Node {
	return n.parents
}

// Children returns the ARG nodes reached from this node.
func (n *Node) Children() []*Node {
	return n.children
}

func (n *Node) addParent(parent *Node) {
	if parent == nil {
		return
	}
	for _, p := range n.parents {
		if p == parent {
			return
		}
	}
	n.parents = append(n.parents, parent)
	parent.children = append(parent.children, n)
}

type nodeKey struct {
	loc   *cfa.Node
	state State
}

type nodeKeyHasher struct {
	locs utils.PointerHasher[*cfa.Node]
}

func (h nodeKeyHasher) Hash(k nodeKey) uint32 {
	return utils.HashCombine(h.locs.Hash(k.loc), k.state.Hash())
}

func (h nodeKeyHasher) Equal(a, b nodeKey) bool {
	return a.loc == b.loc && a.state.Equal(b.state)
}

// ReachedSet is the set of reached (location, state) pairs, organized as
// an abstract reachability graph.
type ReachedSet struct {
	index  *hmap.Map[nodeKey, *Node]
	perLoc map[*cfa.Node][]*Node
	root   *Node
	order  []*Node
}

// NewReachedSet creates an empty reached set.
func NewReachedSet() *ReachedSet {
	return &ReachedSet{
		index:  hmap.NewMap[*Node, nodeKey](nodeKeyHasher{}),
		perLoc: map[*cfa.Node][]*Node{},
	}
}

// Root returns the initial ARG node, nil while the set is empty.
func (r *ReachedSet) Root() *Node {
	return r.root
}

// Len returns the number of reached (location, state) pairs.
func (r *ReachedSet) Len() int {
	return len(r.order)
}

// Find returns the ARG node for an exact (location, state) pair.
func (r *ReachedSet) Find(loc *cfa.Node, state State) (*Node, bool) {
	return r.index.GetOk(nodeKey{loc, state})
}

// AtLocation returns all ARG nodes reached at the given location.
func (r *ReachedSet) AtLocation(loc *cfa.Node) []*Node {
	return r.perLoc[loc]
}

// StatesAt returns the abstract states reached at the given location.
func (r *ReachedSet) StatesAt(loc *cfa.Node) []State {
	nodes := r.perLoc[loc]
	states := make([]State, 0, len(nodes))
	for _, n := range nodes {
		states = append(states, n.State)
	}
	return states
}

// ForEach visits the ARG nodes in discovery order.
func (r *ReachedSet) ForEach(do func(n *Node)) {
	for _, n := range r.order {
		do(n)
	}
}

// Replace swaps the state of an existing ARG node, keeping the index
// consistent. Used when a merge operator widens a reached state.
func (r *ReachedSet) Replace(n *Node, state State) {
	r.index.Delete(nodeKey{n.Loc, n.State})
	n.State = state
	r.index.Set(nodeKey{n.Loc, state}, n)
}

// Add inserts a (location, state) pair reached from parent, creating a new
// ARG node. If the exact pair is already present, the existing node gains
// parent as an additional parent and no new node is created.
func (r *ReachedSet) Add(loc *cfa.Node, state State, parent *Node) (*Node, bool) {
	if existing, found := r.Find(loc, state); found {
		existing.addParent(parent)
		return existing, false
	}

	n := &Node{ID: len(r.order), Loc: loc, State: state}
	n.addParent(parent)
	r.index.Set(nodeKey{loc, state}, n)
	r.perLoc[loc] = append(r.perLoc[loc], n)
	r.order = append(r.order, n)
	if r.root == nil {
		r.root = n
	}
	return n, true
}
