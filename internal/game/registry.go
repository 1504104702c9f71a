package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps rule-set ids to validated rule sets. Rule sets are never
// mutated once registered.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]*RuleSet
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]*RuleSet)}
}

// BuiltinRegistry returns a registry holding the uno and idiot presets with
// their default options.
func BuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, build := range []func(PresetOptions) (*RuleSet, error){UnoRuleSet, IdiotRuleSet} {
		rs, err := build(PresetOptions{})
		if err != nil {
			panic(fmt.Sprintf("built-in rule set: %v", err))
		}
		r.rules[rs.ID] = rs
	}
	return r
}

// Register validates and adds a rule set, replacing any with the same id.
func (r *Registry) Register(rs *RuleSet) error {
	rs.normalize()
	if err := rs.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rs.ID] = rs
	return nil
}

// Get looks up a rule set by id.
func (r *Registry) Get(id string) (*RuleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.rules[id]
	if !ok {
		return nil, ruleErr(ErrRuleSetNotFound, "rule set %q not found", id)
	}
	return rs, nil
}

// List returns every registered rule set ordered by id.
func (r *Registry) List() []*RuleSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RuleSet, 0, len(r.rules))
	for _, rs := range r.rules {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
