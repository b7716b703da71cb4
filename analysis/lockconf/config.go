// Package lockconf parses annotated lock function configurations.
//
// An annotation file teaches the analysis about functions whose lock
// behavior is not visible in the program text, e. g. wrappers in other
// packages or foreign functions:
//
//	functions:
//	  mypkg.EnterCritical:
//	    - { effect: save }
//	    - { effect: acquire, lock: critical }
//	  mypkg.LeaveCritical:
//	    - { effect: restoreall }
//	  mypkg.WithBudget:
//	    - { effect: set, lock: budget, count: 3 }
package lockconf

import (
	"fmt"
	"os"

	"github.com/lokeshkvn/cpachecker/analysis/lock"

	"gopkg.in/yaml.v2"
)

// Annotation describes a single lock effect of an annotated function.
type Annotation struct {
	// Effect is one of: acquire, release, reset, set, restore, restoreall,
	// save, checkheld, checkfree.
	Effect string `yaml:"effect"`
	// Lock names the affected lock. Required for all effects except
	// restoreall and save.
	Lock string `yaml:"lock,omitempty"`
	// Count is the pinned recursion count for the set effect.
	Count int `yaml:"count,omitempty"`
}

// Config maps function names to their annotated lock effects. Functions
// are matched against the fully qualified SSA name first and the bare
// function name second.
type Config struct {
	Functions map[string][]Annotation `yaml:"functions"`
}

// Parse reads a configuration from YAML source and validates it.
func Parse(data []byte) (*Config, error) {
	conf := &Config{}
	if err := yaml.UnmarshalStrict(data, conf); err != nil {
		return nil, err
	}

	for fn, annotations := range conf.Functions {
		for _, a := range annotations {
			if _, err := a.effect(); err != nil {
				return nil, fmt.Errorf("annotation for %s: %w", fn, err)
			}
		}
	}
	return conf, nil
}

// Load reads and parses the configuration file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// EffectsFor returns the annotated effects for a function, matched by
// qualified name and then by bare name. The second result is false when
// the function carries no annotation.
func (c *Config) EffectsFor(qualified, bare string) ([]lock.Effect, bool) {
	if c == nil {
		return nil, false
	}

	annotations, found := c.Functions[qualified]
	if !found {
		annotations, found = c.Functions[bare]
	}
	if !found {
		return nil, false
	}

	effects := make([]lock.Effect, 0, len(annotations))
	for _, a := range annotations {
		// Parse validated all annotations up front.
		effect, _ := a.effect()
		effects = append(effects, effect)
	}
	return effects, true
}

func (a Annotation) effect() (lock.Effect, error) {
	id := lock.AnnotatedID(a.Lock)

	requireLock := func() error {
		if a.Lock == "" {
			return fmt.Errorf("effect %q requires a lock name", a.Effect)
		}
		return nil
	}

	switch a.Effect {
	case "acquire":
		return lock.AcquireEffectForID(id), requireLock()
	case "release":
		return lock.ReleaseEffectForID(id), requireLock()
	case "reset":
		return lock.ResetEffectForID(id), requireLock()
	case "set":
		if a.Count < 0 {
			return nil, fmt.Errorf("effect set with negative count %d", a.Count)
		}
		return lock.SetEffectForID(id, a.Count), requireLock()
	case "restore":
		return lock.RestoreEffectForID(id), requireLock()
	case "restoreall":
		return lock.RestoreAllEffects(), nil
	case "save":
		return lock.SaveStateEffect(), nil
	case "checkheld":
		return lock.CheckEffectForID(id, true), requireLock()
	case "checkfree":
		return lock.CheckEffectForID(id, false), requireLock()
	default:
		return nil, fmt.Errorf("unknown lock effect %q", a.Effect)
	}
}
