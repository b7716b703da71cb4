package lock

import "fmt"

// Effect is a single replayable edit against a lock-state builder. The
// difference algorithm emits acquire and release effects; the remaining
// variants originate from annotated lock functions.
type Effect interface {
	// Apply replays the effect onto an open builder.
	Apply(b *Builder)
	String() string
}

type (
	// AcquireEffect increments the recursion count of a lock.
	AcquireEffect struct{ id ID }
	// ReleaseEffect decrements the recursion count of a lock.
	ReleaseEffect struct{ id ID }
	// ResetEffect forgets a lock entirely, regardless of its count.
	ResetEffect struct{ id ID }
	// SetEffect pins the recursion count of a lock to a fixed value.
	SetEffect struct {
		id    ID
		count int
	}
	// RestoreEffect reverts a lock to its count in the restore state.
	RestoreEffect struct{ id ID }
	// RestoreAllEffect reverts the whole lock mapping to the restore state.
	RestoreAllEffect struct{}
	// SaveEffect establishes the restore linkage at call entry.
	SaveEffect struct{}
	// CheckEffect requires a lock to be held (or free); a violated check
	// marks the path infeasible.
	CheckEffect struct {
		id       ID
		mustHold bool
	}
)

// AcquireEffectForID creates an acquire effect for the given lock.
func AcquireEffectForID(id ID) AcquireEffect { return AcquireEffect{id} }

// ReleaseEffectForID creates a release effect for the given lock.
func ReleaseEffectForID(id ID) ReleaseEffect { return ReleaseEffect{id} }

// ResetEffectForID creates a reset effect for the given lock.
func ResetEffectForID(id ID) ResetEffect { return ResetEffect{id} }

// SetEffectForID creates an effect pinning the given lock to count n.
func SetEffectForID(id ID, n int) SetEffect { return SetEffect{id, n} }

// RestoreEffectForID creates a restore effect for the given lock.
func RestoreEffectForID(id ID) RestoreEffect { return RestoreEffect{id} }

// RestoreAllEffects creates an effect reverting to the restore state.
func RestoreAllEffects() RestoreAllEffect { return RestoreAllEffect{} }

// SaveStateEffect creates an effect recording the pre-call state.
func SaveStateEffect() SaveEffect { return SaveEffect{} }

// CheckEffectForID creates a check that the given lock is held (mustHold)
// or free (!mustHold).
func CheckEffectForID(id ID, mustHold bool) CheckEffect { return CheckEffect{id, mustHold} }

// ID returns the lock the acquire effect targets.
func (e AcquireEffect) ID() ID { return e.id }

// ID returns the lock the release effect targets.
func (e ReleaseEffect) ID() ID { return e.id }

func (e AcquireEffect) Apply(b *Builder) { b.Add(e.id) }
func (e ReleaseEffect) Apply(b *Builder) { b.Free(e.id) }
func (e ResetEffect) Apply(b *Builder)   { b.Reset(e.id) }
func (e SetEffect) Apply(b *Builder)     { b.Set(e.id, e.count) }
func (e RestoreEffect) Apply(b *Builder) { b.Restore(e.id) }
func (RestoreAllEffect) Apply(b *Builder) {
	b.RestoreAll()
}
func (SaveEffect) Apply(b *Builder) {
	b.SetRestoreState()
}

func (e CheckEffect) Apply(b *Builder) {
	if (b.Counter(e.id) > 0) != e.mustHold {
		b.SetAsFalseState()
	}
}

// EffectIDs returns the lock identifiers an effect mentions; empty for
// effects without a specific lock (RestoreAll, Save).
func EffectIDs(e Effect) []ID {
	switch e := e.(type) {
	case AcquireEffect:
		return []ID{e.id}
	case ReleaseEffect:
		return []ID{e.id}
	case ResetEffect:
		return []ID{e.id}
	case SetEffect:
		return []ID{e.id}
	case RestoreEffect:
		return []ID{e.id}
	case CheckEffect:
		return []ID{e.id}
	}
	return nil
}

func (e AcquireEffect) String() string {
	return colorize.Effect("Acquire") + "⟨" + e.id.String() + "⟩"
}

func (e ReleaseEffect) String() string {
	return colorize.Effect("Release") + "⟨" + e.id.String() + "⟩"
}

func (e ResetEffect) String() string {
	return colorize.Effect("Reset") + "⟨" + e.id.String() + "⟩"
}

func (e SetEffect) String() string {
	return colorize.Effect("Set") + fmt.Sprintf("⟨%s ↦ %s⟩", e.id, colorize.Count(e.count))
}

func (e RestoreEffect) String() string {
	return colorize.Effect("Restore") + "⟨" + e.id.String() + "⟩"
}

func (RestoreAllEffect) String() string {
	return colorize.Effect("RestoreAll")
}

func (SaveEffect) String() string {
	return colorize.Effect("Save")
}

func (e CheckEffect) String() string {
	if e.mustHold {
		return colorize.Effect("CheckHeld") + "⟨" + e.id.String() + "⟩"
	}
	return colorize.Effect("CheckFree") + "⟨" + e.id.String() + "⟩"
}
