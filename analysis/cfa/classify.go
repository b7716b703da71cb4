package cfa

import (
	"fmt"
	"go/types"

	"github.com/lokeshkvn/cpachecker/analysis/lock"
	"github.com/lokeshkvn/cpachecker/analysis/lockconf"

	uf "github.com/spakin/disjoint"
	"golang.org/x/tools/go/ssa"
)

// outcome is the classification of a call instruction: either a set of
// alternative effect sequences (one edge each), or a callee to analyze
// through a summary, or neither for irrelevant calls.
type outcome struct {
	alternatives [][]lock.Effect
	callee       *ssa.Function
}

// classifier assigns lock identifiers to SSA values and lock effects to
// call instructions. Values that must refer to the same lock (related by
// phi nodes) are unified into disjoint-set classes sharing one identifier.
type classifier struct {
	conf *lockconf.Config
	// aliases caches per-function alias classes.
	aliases map[*ssa.Function]*aliasClasses
	// relevant memoizes which functions (transitively) perform lock
	// operations. Functions currently on the recursion stack map to false.
	relevant map[*ssa.Function]bool
}

type aliasClasses struct {
	elems map[ssa.Value]*uf.Element
	// ids memoizes the identifier of each class representative.
	ids map[*uf.Element]lock.ID
}

func newClassifier(conf *lockconf.Config) *classifier {
	return &classifier{
		conf:     conf,
		aliases:  map[*ssa.Function]*aliasClasses{},
		relevant: map[*ssa.Function]bool{},
	}
}

// classify determines the lock behavior of a call. Annotated functions
// take precedence, then the sync primitives, then summarization of
// statically resolved callees that transitively touch locks.
func (c *classifier) classify(fn *ssa.Function, call *ssa.CallCommon) outcome {
	if alts, classified := c.syncOrAnnotated(fn, call); classified {
		return outcome{alternatives: alts}
	}

	callee := call.StaticCallee()
	if callee != nil && len(callee.Blocks) > 0 && c.lockRelevant(callee) {
		return outcome{callee: callee}
	}
	return outcome{}
}

// deferredEffects classifies a deferred call. Only directly classified
// lock operations are modelled; for branching outcomes the pessimistic
// first alternative is used, and summarizable callees are approximated by
// their own deferred-visible effects being ignored.
func (c *classifier) deferredEffects(fn *ssa.Function, call *ssa.CallCommon) []lock.Effect {
	if alts, classified := c.syncOrAnnotated(fn, call); classified && len(alts) > 0 {
		return alts[0]
	}
	return nil
}

func (c *classifier) syncOrAnnotated(fn *ssa.Function, call *ssa.CallCommon) ([][]lock.Effect, bool) {
	if call.IsInvoke() {
		// Dynamically dispatched; the receiver's lock identity is unknown.
		return nil, false
	}
	callee := call.StaticCallee()
	if callee == nil {
		return nil, false
	}

	if effects, annotated := c.conf.EffectsFor(callee.String(), callee.Name()); annotated {
		return [][]lock.Effect{effects}, true
	}

	if !isSyncLockMethod(callee) {
		return nil, false
	}
	if len(call.Args) == 0 {
		return nil, false
	}

	id := c.classesFor(fn).idFor(call.Args[0])
	switch callee.Name() {
	case "Lock":
		return [][]lock.Effect{{lock.AcquireEffectForID(id)}}, true
	case "Unlock":
		return [][]lock.Effect{{lock.ReleaseEffectForID(id)}}, true
	case "RLock":
		return [][]lock.Effect{{lock.AcquireEffectForID(readerID(id))}}, true
	case "RUnlock":
		return [][]lock.Effect{{lock.ReleaseEffectForID(readerID(id))}}, true
	case "TryLock":
		// Either the lock was acquired or the attempt failed.
		return [][]lock.Effect{{lock.AcquireEffectForID(id)}, nil}, true
	case "TryRLock":
		return [][]lock.Effect{{lock.AcquireEffectForID(readerID(id))}, nil}, true
	}
	return nil, false
}

// lockRelevant reports whether the function or anything it statically
// calls performs a classified lock operation.
func (c *classifier) lockRelevant(fn *ssa.Function) bool {
	if rel, seen := c.relevant[fn]; seen {
		return rel
	}
	// Break call cycles pessimistically; a lock operation elsewhere in the
	// cycle is discovered through its own caller.
	c.relevant[fn] = false

	rel := false
scan:
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			site, isCall := instr.(ssa.CallInstruction)
			if !isCall {
				continue
			}
			call := site.Common()
			if _, classified := c.syncOrAnnotated(fn, call); classified {
				rel = true
				break scan
			}
			if callee := call.StaticCallee(); callee != nil &&
				len(callee.Blocks) > 0 && c.lockRelevant(callee) {
				rel = true
				break scan
			}
		}
	}
	c.relevant[fn] = rel
	return rel
}

// isSyncLockMethod reports whether fn is a locking method of sync.Mutex or
// sync.RWMutex.
func isSyncLockMethod(fn *ssa.Function) bool {
	recv := fn.Signature.Recv()
	if recv == nil {
		return false
	}
	ptr, isPtr := recv.Type().(*types.Pointer)
	if !isPtr {
		return false
	}
	named, isNamed := ptr.Elem().(*types.Named)
	if !isNamed {
		return false
	}
	obj := named.Obj()
	if obj.Pkg() == nil || obj.Pkg().Path() != "sync" {
		return false
	}
	switch obj.Name() {
	case "Mutex", "RWMutex":
		return true
	}
	return false
}

// readerID derives the read-side identifier of an RWMutex from its
// write-side identifier.
func readerID(id lock.ID) lock.ID {
	id.Name += "#r"
	return id
}

func (c *classifier) classesFor(fn *ssa.Function) *aliasClasses {
	if classes, found := c.aliases[fn]; found {
		return classes
	}
	classes := &aliasClasses{
		elems: map[ssa.Value]*uf.Element{},
		ids:   map[*uf.Element]lock.ID{},
	}
	// Values flowing through a phi node denote the same lock on every path
	// that reaches it; unify them into one class.
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			if phi, isPhi := instr.(*ssa.Phi); isPhi {
				for _, edge := range phi.Edges {
					uf.Union(classes.elem(phi), classes.elem(edge))
				}
			}
		}
	}
	c.aliases[fn] = classes
	return classes
}

func (a *aliasClasses) elem(v ssa.Value) *uf.Element {
	if el, found := a.elems[v]; found {
		return el
	}
	el := uf.NewElement()
	el.Data = v
	a.elems[v] = el
	return el
}

// idFor resolves the lock identifier of an SSA value, memoized per alias
// class. The class member with the most descriptive shape names the whole
// class.
func (a *aliasClasses) idFor(v ssa.Value) lock.ID {
	rep := a.elem(v).Find()
	if id, named := a.ids[rep]; named {
		return id
	}

	best, bestRank := v, shapeRank(v)
	for member, el := range a.elems {
		if el.Find() != rep {
			continue
		}
		if rank := shapeRank(member); rank > bestRank {
			best, bestRank = member, rank
		}
	}

	id := a.structuralID(best)
	a.ids[rep] = id
	return id
}

// shapeRank orders value shapes by how descriptive the derived identifier
// is: globals name the lock best, then field and index projections, then
// local allocations.
func shapeRank(v ssa.Value) int {
	switch v.(type) {
	case *ssa.Global:
		return 4
	case *ssa.FieldAddr, *ssa.IndexAddr:
		return 3
	case *ssa.Alloc:
		return 2
	case *ssa.Parameter, *ssa.FreeVar:
		return 1
	}
	return 0
}

func (a *aliasClasses) structuralID(v ssa.Value) lock.ID {
	switch v := v.(type) {
	case *ssa.Global:
		return lock.GlobalID(v.String())

	case *ssa.FieldAddr:
		base := a.idFor(v.X)
		return lock.FieldID(base, fieldName(v.X.Type(), v.Field))

	case *ssa.IndexAddr:
		base := a.idFor(v.X)
		if konst, isConst := v.Index.(*ssa.Const); isConst {
			return lock.IndexedID(base, int(konst.Int64()))
		}
		return lock.IndexedID(base, lock.NoIndex)

	case *ssa.Alloc:
		name := v.Comment
		if name == "" {
			name = v.Name()
		}
		return lock.LocalID(localName(v.Parent(), name))

	case *ssa.Parameter:
		return lock.LocalID(localName(v.Parent(), v.Name()))

	case *ssa.FreeVar:
		return lock.LocalID(localName(v.Parent(), v.Name()))

	case *ssa.UnOp:
		return a.idFor(v.X)

	case *ssa.MakeClosure:
		return a.idFor(v.Bindings[0])
	}

	return lock.LocalID(localName(valueParent(v), v.Name()))
}

func localName(fn *ssa.Function, name string) string {
	if fn == nil {
		return name
	}
	return fmt.Sprintf("%s:%s", fn.String(), name)
}

func valueParent(v ssa.Value) *ssa.Function {
	if instr, isInstr := v.(ssa.Instruction); isInstr {
		return instr.Parent()
	}
	return nil
}

func fieldName(base types.Type, index int) string {
	typ := base.Underlying()
	if ptr, isPtr := typ.(*types.Pointer); isPtr {
		typ = ptr.Elem().Underlying()
	}
	if str, isStruct := typ.(*types.Struct); isStruct && index < str.NumFields() {
		return str.Field(index).Name()
	}
	return fmt.Sprintf("f%d", index)
}
