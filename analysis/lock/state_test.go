package lock

import "testing"

var (
	mu = GlobalID("main.mu")
	nu = GlobalID("main.nu")
	rw = GlobalID("main.rw")
)

// stateOf builds a state holding the given locks at the given counts.
func stateOf(t *testing.T, counts map[ID]int) *State {
	t.Helper()
	b := Empty().Builder()
	for id, count := range counts {
		b.Set(id, count)
	}
	s, feasible := b.Build()
	if !feasible {
		t.Fatal("building a state from counts should never be infeasible")
	}
	return s
}

func TestStateCounters(t *testing.T) {
	s := stateOf(t, map[ID]int{mu: 2, nu: 1})

	tests := []struct {
		id       ID
		expected int
	}{
		{mu, 2},
		{nu, 1},
		{rw, 0},
	}

	for _, test := range tests {
		if count := s.Counter(test.id); count != test.expected {
			t.Errorf("Counter(%s) = %d, expected %d", test.id, count, test.expected)
		}
	}

	if s.Size() != 2 {
		t.Errorf("Size() = %d, expected 2", s.Size())
	}
	if held := s.HeldLocks(); len(held) != 2 || held[0] != mu || held[1] != nu {
		t.Errorf("HeldLocks() = %v, expected [%s %s]", held, mu, nu)
	}
}

func TestStateEqualHash(t *testing.T) {
	tests := []struct {
		a, b     *State
		expected bool
	}{
		{Empty(), Empty(), true},
		{Empty(), stateOf(t, map[ID]int{mu: 1}), false},
		{stateOf(t, map[ID]int{mu: 1}), stateOf(t, map[ID]int{mu: 1}), true},
		{stateOf(t, map[ID]int{mu: 1}), stateOf(t, map[ID]int{mu: 2}), false},
		{stateOf(t, map[ID]int{mu: 1, nu: 2}), stateOf(t, map[ID]int{nu: 2, mu: 1}), true},
		{stateOf(t, map[ID]int{mu: 1}), stateOf(t, map[ID]int{nu: 1}), false},
	}

	for _, test := range tests {
		if eq := test.a.Equal(test.b); eq != test.expected {
			t.Errorf("%s.Equal(%s) = %v, expected %v", test.a, test.b, eq, test.expected)
		}
		if test.expected && test.a.Hash() != test.b.Hash() {
			t.Errorf("equal states %s and %s have different hashes", test.a, test.b)
		}
	}
}

func TestStateEqualRestore(t *testing.T) {
	s := stateOf(t, map[ID]int{mu: 1})

	b := s.Builder()
	b.SetRestoreState()
	withRestore, _ := b.Build()

	if withRestore.Equal(s) {
		t.Errorf("%s with a restore link should not equal %s without one", withRestore, s)
	}
	if withRestore.RestoreState() != s {
		t.Errorf("restore link should be the originating state instance")
	}

	b = s.Builder()
	b.SetRestoreState()
	withRestore2, _ := b.Build()
	if !withRestore.Equal(withRestore2) {
		t.Errorf("states with structurally equal restore links should be equal")
	}
}

func TestStateCmp(t *testing.T) {
	tests := []struct {
		a, b *State
		sign int
	}{
		{Empty(), Empty(), 0},
		// More distinct locks sorts first.
		{stateOf(t, map[ID]int{mu: 1, nu: 1}), stateOf(t, map[ID]int{mu: 1}), -1},
		{stateOf(t, map[ID]int{mu: 1}), stateOf(t, map[ID]int{mu: 1, nu: 1}), 1},
		// Equal sizes break ties on ascending identifiers.
		{stateOf(t, map[ID]int{mu: 1}), stateOf(t, map[ID]int{nu: 1}), -1},
		{stateOf(t, map[ID]int{nu: 1}), stateOf(t, map[ID]int{mu: 1}), 1},
		// Then on counter difference.
		{stateOf(t, map[ID]int{mu: 1}), stateOf(t, map[ID]int{mu: 3}), -1},
		{stateOf(t, map[ID]int{mu: 3}), stateOf(t, map[ID]int{mu: 1}), 1},
		{stateOf(t, map[ID]int{mu: 2, nu: 1}), stateOf(t, map[ID]int{mu: 2, nu: 1}), 0},
	}

	sign := func(n int) int {
		switch {
		case n < 0:
			return -1
		case n > 0:
			return 1
		}
		return 0
	}

	for _, test := range tests {
		if res := sign(test.a.Cmp(test.b)); res != test.sign {
			t.Errorf("sign(%s.Cmp(%s)) = %d, expected %d", test.a, test.b, res, test.sign)
		}
		if res := sign(test.a.Cmp(test.b)) + sign(test.b.Cmp(test.a)); res != 0 {
			t.Errorf("Cmp of %s and %s is not antisymmetric", test.a, test.b)
		}
	}
}

func TestStateApply(t *testing.T) {
	s := stateOf(t, map[ID]int{mu: 1})

	successor, feasible := s.Apply([]Effect{
		AcquireEffectForID(mu),
		AcquireEffectForID(nu),
		ReleaseEffectForID(nu),
	})
	if !feasible {
		t.Fatal("expected a feasible successor")
	}
	if expected := stateOf(t, map[ID]int{mu: 2}); !successor.Equal(expected) {
		t.Errorf("Apply = %s, expected %s", successor, expected)
	}

	// A violated check marks the path infeasible.
	if _, feasible := s.Apply([]Effect{CheckEffectForID(nu, true)}); feasible {
		t.Errorf("CheckHeld⟨%s⟩ on %s should be infeasible", nu, s)
	}
	if _, feasible := s.Apply([]Effect{CheckEffectForID(mu, false)}); feasible {
		t.Errorf("CheckFree⟨%s⟩ on %s should be infeasible", mu, s)
	}
	if _, feasible := s.Apply([]Effect{CheckEffectForID(mu, true)}); !feasible {
		t.Errorf("CheckHeld⟨%s⟩ on %s should be feasible", mu, s)
	}
}

// TestStateCanonicalOrder checks that iteration order is the ascending
// identifier order, independent of the order in which locks were taken.
func TestStateCanonicalOrder(t *testing.T) {
	permutations := [][]ID{
		{mu, nu, rw},
		{rw, nu, mu},
		{nu, rw, mu},
	}

	reference := stateOf(t, map[ID]int{mu: 1, nu: 1, rw: 1})
	for _, perm := range permutations {
		b := Empty().Builder()
		for _, id := range perm {
			b.Add(id)
		}
		s, _ := b.Build()

		held := s.HeldLocks()
		if len(held) != 3 || held[0] != mu || held[1] != nu || held[2] != rw {
			t.Errorf("acquisition order %v iterates as %v, expected ascending", perm, held)
		}
		if !s.Equal(reference) || s.String() != reference.String() {
			t.Errorf("acquisition order %v renders %s, expected %s", perm, s, reference)
		}
	}
}

func TestIdentifierOrder(t *testing.T) {
	arr := GlobalID("main.arr")

	tests := []struct {
		a, b ID
		sign int
	}{
		{mu, nu, -1},
		{nu, mu, 1},
		{mu, mu, 0},
		{IndexedID(arr, 0), IndexedID(arr, 1), -1},
		{IndexedID(arr, 1), IndexedID(arr, NoIndex), 1},
		// Same name, different kinds.
		{GlobalID("l"), AnnotatedID("l"), -1},
	}

	for _, test := range tests {
		res := test.a.Cmp(test.b)
		switch {
		case test.sign < 0 && res >= 0,
			test.sign > 0 && res <= 0,
			test.sign == 0 && res != 0:
			t.Errorf("%s.Cmp(%s) = %d, expected sign %d", test.a, test.b, res, test.sign)
		}
	}
}
