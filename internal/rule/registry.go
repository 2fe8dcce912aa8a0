package rule

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Registry stores at most one rule per (source, target) pair.
//
// Rules are kept in insertion order so that ListPairs and Save reproduce the
// order of the rule file they were loaded from. Re-adding a pair replaces the
// rule in place and logs a warning.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]map[string]*Rule
	order []Pair
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]map[string]*Rule)}
}

// AddRule inserts rule, replacing any rule already stored for its pair.
func (r *Registry) AddRule(rule *Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets, ok := r.rules[rule.Source]
	if !ok {
		targets = make(map[string]*Rule)
		r.rules[rule.Source] = targets
	}
	if _, exists := targets[rule.Target]; exists {
		slog.Warn("rule already exists, overwriting", "source", rule.Source, "target", rule.Target)
	} else {
		r.order = append(r.order, rule.Pair())
	}
	targets[rule.Target] = rule
}

// Query returns the rule for (source, target). When source equals target it
// returns the identity rule, which is never stored.
func (r *Registry) Query(source, target string) (*Rule, error) {
	if source == target {
		return Identity(source), nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rule, ok := r.rules[source][target]; ok {
		return rule, nil
	}
	return nil, &NotFoundError{Source: source, Target: target}
}

// QuerySource returns every rule whose source is source, keyed by target.
func (r *Registry) QuerySource(source string) (map[string]*Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets, ok := r.rules[source]
	if !ok || len(targets) == 0 {
		return nil, &NotFoundError{Source: source}
	}
	out := make(map[string]*Rule, len(targets))
	for target, rule := range targets {
		out[target] = rule
	}
	return out, nil
}

// ListPairs returns every stored pair in insertion order.
func (r *Registry) ListPairs() []Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pairs := make([]Pair, len(r.order))
	copy(pairs, r.order)
	return pairs
}

// Rules returns every stored rule in insertion order.
func (r *Registry) Rules() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules := make([]*Rule, 0, len(r.order))
	for _, p := range r.order {
		rules = append(rules, r.rules[p.Source][p.Target])
	}
	return rules
}

// Len returns the number of stored rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clean removes every rule.
func (r *Registry) Clean() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = make(map[string]map[string]*Rule)
	r.order = nil
}

// Load reads a rule file and adds every rule in it, optionally clearing the
// registry first. The file is fully parsed and validated before any rule is
// added, so a malformed file leaves the registry untouched.
func (r *Registry) Load(path string, clean bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}
	rules, err := ParseFile(data)
	if err != nil {
		return err
	}
	if clean {
		r.Clean()
	}
	for _, rule := range rules {
		r.AddRule(rule)
	}
	slog.Debug("rules loaded", "path", path, "count", len(rules))
	return nil
}

// Save writes every rule to path as an indented rule file.
func (r *Registry) Save(path string) error {
	data, err := EncodeFile(r.Rules())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write rule file: %w", err)
	}
	return nil
}
