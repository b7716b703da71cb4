// Package cfa builds per-function control-flow automata over SSA form,
// with edges classified into the lock events they trigger.
package cfa

import (
	"fmt"

	"github.com/lokeshkvn/cpachecker/analysis/lock"
	"github.com/lokeshkvn/cpachecker/analysis/lockconf"

	"golang.org/x/tools/go/ssa"
)

// Node is a control location: a position between instructions of a basic
// block, or the distinguished function exit.
type Node struct {
	Fn *ssa.Function
	// Block is nil for the exit node.
	Block *ssa.BasicBlock
	// Index is the index of the next instruction to execute.
	Index int
	succs []*Edge
}

// Succs returns the outgoing edges of the node.
func (n *Node) Succs() []*Edge {
	return n.succs
}

// IsExit reports whether the node is the function exit.
func (n *Node) IsExit() bool {
	return n.Block == nil
}

func (n *Node) String() string {
	if n.IsExit() {
		return fmt.Sprintf("%s:exit", n.Fn.Name())
	}
	return fmt.Sprintf("%s:%d:%d", n.Fn.Name(), n.Block.Index, n.Index)
}

// Edge is a control-flow step. It carries the lock effects the step
// triggers, or the callee of a summarized call. Several edges may connect
// the same pair of nodes when a lock operation has alternative outcomes
// (e. g. TryLock).
type Edge struct {
	From, To *Node
	// Effects are the classified lock effects of this step, possibly empty.
	Effects []lock.Effect
	// Call is the statically resolved callee for calls that are analyzed
	// through function summaries. Effects is empty for such edges.
	Call *ssa.Function
}

func (e *Edge) String() string {
	switch {
	case e.Call != nil:
		return fmt.Sprintf("%s --call %s--> %s", e.From, e.Call.Name(), e.To)
	case len(e.Effects) > 0:
		return fmt.Sprintf("%s --%v--> %s", e.From, e.Effects, e.To)
	default:
		return fmt.Sprintf("%s --> %s", e.From, e.To)
	}
}

// Graph is the control-flow automaton of a single function.
type Graph struct {
	Fn    *ssa.Function
	entry *Node
	exit  *Node
	nodes map[position]*Node
}

type position struct {
	block *ssa.BasicBlock
	index int
}

// Entry returns the entry location of the function.
func (g *Graph) Entry() *Node {
	return g.entry
}

// Exit returns the distinguished exit location of the function.
func (g *Graph) Exit() *Node {
	return g.exit
}

// ForEachNode visits every control location of the function.
func (g *Graph) ForEachNode(do func(n *Node)) {
	do(g.exit)
	for _, n := range g.nodes {
		do(n)
	}
}

// ForEachEdge visits every edge of the function.
func (g *Graph) ForEachEdge(do func(e *Edge)) {
	g.ForEachNode(func(n *Node) {
		for _, e := range n.succs {
			do(e)
		}
	})
}

func (g *Graph) node(block *ssa.BasicBlock, index int) *Node {
	pos := position{block, index}
	if n, found := g.nodes[pos]; found {
		return n
	}
	n := &Node{Fn: g.Fn, Block: block, Index: index}
	g.nodes[pos] = n
	return n
}

func (g *Graph) addEdge(from, to *Node, effects []lock.Effect, call *ssa.Function) {
	from.succs = append(from.succs, &Edge{From: from, To: to, Effects: effects, Call: call})
}

// Builder constructs and caches control-flow automata for the functions of
// a program, sharing one classifier.
type Builder struct {
	classifier *classifier
	graphs     map[*ssa.Function]*Graph
}

// NewBuilder creates a CFA builder with the given (possibly nil) lock
// annotation configuration.
func NewBuilder(conf *lockconf.Config) *Builder {
	return &Builder{
		classifier: newClassifier(conf),
		graphs:     map[*ssa.Function]*Graph{},
	}
}

// ForFunction returns the control-flow automaton of fn, building it on
// first request.
func (b *Builder) ForFunction(fn *ssa.Function) *Graph {
	if g, found := b.graphs[fn]; found {
		return g
	}

	g := &Graph{
		Fn:    fn,
		exit:  &Node{Fn: fn, Block: nil, Index: -1},
		nodes: map[position]*Node{},
	}
	b.graphs[fn] = g

	if len(fn.Blocks) == 0 {
		// External function without a body; entry falls through to exit.
		g.entry = &Node{Fn: fn, Block: nil, Index: 0}
		g.nodes[position{nil, 0}] = g.entry
		g.addEdge(g.entry, g.exit, nil, nil)
		return g
	}

	g.entry = g.node(fn.Blocks[0], 0)

	// Lock effects of deferred calls, in defer-registration order. They are
	// replayed in reverse on RunDefers and Panic edges. Conditionally
	// registered defers are over-approximated as always registered.
	deferred := [][]lock.Effect{}
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			if def, isDefer := instr.(*ssa.Defer); isDefer {
				if effects := b.classifier.deferredEffects(fn, def.Common()); len(effects) > 0 {
					deferred = append(deferred, effects)
				}
			}
		}
	}
	runDeferred := make([]lock.Effect, 0)
	for i := len(deferred) - 1; i >= 0; i-- {
		runDeferred = append(runDeferred, deferred[i]...)
	}

	for _, block := range fn.Blocks {
		for idx, instr := range block.Instrs {
			from := g.node(block, idx)

			switch instr := instr.(type) {
			case *ssa.Call:
				to := g.node(block, idx+1)
				out := b.classifier.classify(fn, instr.Common())
				switch {
				case out.callee != nil:
					g.addEdge(from, to, nil, out.callee)
				case len(out.alternatives) > 0:
					for _, alt := range out.alternatives {
						g.addEdge(from, to, alt, nil)
					}
				default:
					g.addEdge(from, to, nil, nil)
				}

			case *ssa.RunDefers:
				g.addEdge(from, g.node(block, idx+1), runDeferred, nil)

			case *ssa.Return:
				g.addEdge(from, g.exit, nil, nil)

			case *ssa.Panic:
				// Panicking runs the deferred calls before unwinding.
				g.addEdge(from, g.exit, runDeferred, nil)

			case *ssa.Jump:
				g.addEdge(from, g.node(block.Succs[0], 0), nil, nil)

			case *ssa.If:
				g.addEdge(from, g.node(block.Succs[0], 0), nil, nil)
				g.addEdge(from, g.node(block.Succs[1], 0), nil, nil)

			default:
				g.addEdge(from, g.node(block, idx+1), nil, nil)
			}
		}
	}

	return g
}

// LockOperations counts the classified lock-effect edges of the graph.
func (g *Graph) LockOperations() (count int) {
	g.ForEachEdge(func(e *Edge) {
		if len(e.Effects) > 0 {
			count++
		}
	})
	return
}
