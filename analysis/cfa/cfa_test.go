package cfa

import (
	"testing"

	"github.com/lokeshkvn/cpachecker/analysis/lock"
	"github.com/lokeshkvn/cpachecker/analysis/lockconf"
	"github.com/lokeshkvn/cpachecker/pkgutil"

	"golang.org/x/tools/go/ssa"
)

func loadFunction(t *testing.T, source, name string) *ssa.Function {
	t.Helper()
	_, mainPkg, err := pkgutil.SSAFromSource(source)
	if err != nil {
		t.Fatalf("loading source failed: %v", err)
	}
	fn := mainPkg.Func(name)
	if fn == nil {
		t.Fatalf("no function %q in the test program", name)
	}
	return fn
}

// globalID names a package-level variable of the loaded test program. The
// overlay loader decides the package path, so tests derive it instead of
// hard-coding it.
func globalID(fn *ssa.Function, name string) lock.ID {
	return lock.GlobalID(fn.Pkg.Pkg.Path() + "." + name)
}

func collectEffects(g *Graph) (effects []lock.Effect) {
	g.ForEachEdge(func(e *Edge) {
		effects = append(effects, e.Effects...)
	})
	return
}

func countAcquiresReleases(effects []lock.Effect) (acquires, releases map[lock.ID]int) {
	acquires, releases = map[lock.ID]int{}, map[lock.ID]int{}
	for _, effect := range effects {
		switch effect := effect.(type) {
		case lock.AcquireEffect:
			acquires[effect.ID()]++
		case lock.ReleaseEffect:
			releases[effect.ID()]++
		}
	}
	return
}

func TestClassifyGlobalMutex(t *testing.T) {
	fn := loadFunction(t, `package main

import "sync"

var mu sync.Mutex

func main() {
	mu.Lock()
	mu.Unlock()
}`, "main")

	g := NewBuilder(nil).ForFunction(fn)
	acquires, releases := countAcquiresReleases(collectEffects(g))

	id := globalID(fn, "mu")
	if acquires[id] != 1 || releases[id] != 1 {
		t.Errorf("expected one acquire and one release of %s, got %v / %v",
			id, acquires, releases)
	}
}

func TestClassifyRWMutex(t *testing.T) {
	fn := loadFunction(t, `package main

import "sync"

var rw sync.RWMutex

func main() {
	rw.Lock()
	rw.Unlock()
	rw.RLock()
	rw.RUnlock()
}`, "main")

	g := NewBuilder(nil).ForFunction(fn)
	acquires, releases := countAcquiresReleases(collectEffects(g))

	writer := globalID(fn, "rw")
	reader := globalID(fn, "rw")
	reader.Name += "#r"

	if acquires[writer] != 1 || releases[writer] != 1 {
		t.Errorf("expected one acquire/release of the write side, got %v / %v",
			acquires, releases)
	}
	if acquires[reader] != 1 || releases[reader] != 1 {
		t.Errorf("expected one acquire/release of the read side, got %v / %v",
			acquires, releases)
	}
}

func TestClassifyStructField(t *testing.T) {
	fn := loadFunction(t, `package main

import "sync"

type guarded struct {
	mu    sync.Mutex
	count int
}

var g guarded

func main() {
	g.mu.Lock()
	g.count++
	g.mu.Unlock()
}`, "main")

	g := NewBuilder(nil).ForFunction(fn)
	acquires, _ := countAcquiresReleases(collectEffects(g))

	if len(acquires) != 1 {
		t.Fatalf("expected exactly one acquired lock, got %v", acquires)
	}
	expected := fn.Pkg.Pkg.Path() + ".g.mu"
	for id := range acquires {
		if id.Kind != lock.KindField || id.Name != expected {
			t.Errorf("field lock named %s (kind %d), expected %s", id, id.Kind, expected)
		}
	}
}

func TestClassifyTryLock(t *testing.T) {
	fn := loadFunction(t, `package main

import "sync"

var mu sync.Mutex

func main() {
	if mu.TryLock() {
		mu.Unlock()
	}
}`, "main")

	g := NewBuilder(nil).ForFunction(fn)

	// The TryLock site must produce two alternative edges between the same
	// pair of nodes: one acquiring, one empty-handed.
	foundAlternatives := false
	g.ForEachNode(func(n *Node) {
		succs := n.Succs()
		if len(succs) != 2 || succs[0].To != succs[1].To {
			return
		}
		withEffect, without := succs[0], succs[1]
		if len(withEffect.Effects) == 0 {
			withEffect, without = without, withEffect
		}
		if len(withEffect.Effects) == 1 && len(without.Effects) == 0 {
			if _, isAcquire := withEffect.Effects[0].(lock.AcquireEffect); isAcquire {
				foundAlternatives = true
			}
		}
	})
	if !foundAlternatives {
		t.Errorf("expected alternative acquire/skip edges for TryLock")
	}
}

func TestClassifyDefer(t *testing.T) {
	fn := loadFunction(t, `package main

import "sync"

var mu sync.Mutex

func main() {
	mu.Lock()
	defer mu.Unlock()
	println("critical")
}`, "main")

	g := NewBuilder(nil).ForFunction(fn)
	acquires, releases := countAcquiresReleases(collectEffects(g))

	id := globalID(fn, "mu")
	if acquires[id] != 1 {
		t.Errorf("expected one acquire of %s, got %v", id, acquires)
	}
	if releases[id] == 0 {
		t.Errorf("the deferred unlock of %s should be replayed on function return", id)
	}
}

func TestClassifySummarizedCall(t *testing.T) {
	fn := loadFunction(t, `package main

import "sync"

var mu sync.Mutex

func lockIt() {
	mu.Lock()
}

func noLocks(n int) int {
	return n + 1
}

func main() {
	lockIt()
	noLocks(41)
	mu.Unlock()
}`, "main")

	g := NewBuilder(nil).ForFunction(fn)

	calls := map[string]int{}
	g.ForEachEdge(func(e *Edge) {
		if e.Call != nil {
			calls[e.Call.Name()]++
		}
	})

	if calls["lockIt"] != 1 {
		t.Errorf("expected a summarized call edge for lockIt, got %v", calls)
	}
	if calls["noLocks"] != 0 {
		t.Errorf("lock-irrelevant calls should not be summarized, got %v", calls)
	}
}

func TestClassifyAnnotated(t *testing.T) {
	conf, err := lockconf.Parse([]byte(`
functions:
  enter:
    - { effect: acquire, lock: critical }
  leave:
    - { effect: release, lock: critical }
`))
	if err != nil {
		t.Fatalf("parsing annotations failed: %v", err)
	}

	fn := loadFunction(t, `package main

func enter() {}

func leave() {}

func main() {
	enter()
	leave()
}`, "main")

	g := NewBuilder(conf).ForFunction(fn)
	acquires, releases := countAcquiresReleases(collectEffects(g))

	critical := lock.AnnotatedID("critical")
	if acquires[critical] != 1 || releases[critical] != 1 {
		t.Errorf("expected one annotated acquire and release of %s, got %v / %v",
			critical, acquires, releases)
	}
}

func TestAliasedLocalMutex(t *testing.T) {
	fn := loadFunction(t, `package main

import "sync"

var a, b sync.Mutex

func pick(cond bool) {
	m := &a
	if cond {
		m = &b
	}
	m.Lock()
	m.Unlock()
}

func main() {
	pick(true)
}`, "pick")

	g := NewBuilder(nil).ForFunction(fn)
	acquires, releases := countAcquiresReleases(collectEffects(g))

	// The phi over &a and &b collapses into a single alias class; the lock
	// and unlock must agree on its identifier.
	if len(acquires) != 1 || len(releases) != 1 {
		t.Fatalf("expected a single alias class, got %v / %v", acquires, releases)
	}
	for id := range acquires {
		if releases[id] != 1 {
			t.Errorf("lock and unlock disagree on the alias class: %v / %v",
				acquires, releases)
		}
	}
}
