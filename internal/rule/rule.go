// Package rule provides harmonization rules and the registry that stores
// them.
//
// A rule binds an ordered pipeline of primitive operations to a
// (source column, target column) pair. The registry indexes rules by that
// pair and persists them as a nested JSON document keyed by source, then
// target.
package rule

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bmir-radx/harmonization-framework/internal/ops"
)

// Pair names a source column and the target column it harmonizes into.
type Pair struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

func (p Pair) String() string {
	return p.Source + " -> " + p.Target
}

// ParsePair parses "source:target".
func ParsePair(s string) (Pair, error) {
	source, target, ok := strings.Cut(s, ":")
	if !ok || source == "" || target == "" {
		return Pair{}, fmt.Errorf("invalid pair %q: expected source:target", s)
	}
	return Pair{Source: source, Target: target}, nil
}

// Rule is an ordered pipeline of operations for one column pair.
type Rule struct {
	Source     string
	Target     string
	Operations []ops.Operation
}

// New creates a rule.
func New(source, target string, operations ...ops.Operation) *Rule {
	return &Rule{Source: source, Target: target, Operations: operations}
}

// Identity returns the no-op rule used when a column maps onto itself.
func Identity(column string) *Rule {
	return New(column, column, ops.NewDoNothing())
}

// Pair returns the rule's column pair.
func (r *Rule) Pair() Pair {
	return Pair{Source: r.Source, Target: r.Target}
}

// Transform folds the operations over value, first to last. An empty
// pipeline is the identity. The first failing operation stops the fold.
func (r *Rule) Transform(value any) (any, error) {
	for i, op := range r.Operations {
		out, err := op.Transform(value)
		if err != nil {
			return nil, fmt.Errorf("rule %s: operation %d (%s): %w", r.Pair(), i+1, op.Tag(), err)
		}
		value = out
	}
	return value, nil
}

func (r *Rule) String() string {
	var b strings.Builder
	for i, op := range r.Operations {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Harmonization Operation %d:\n%s", i+1, op)
	}
	return b.String()
}

type wireRule struct {
	Source     *string           `json:"source"`
	Target     *string           `json:"target"`
	Operations []json.RawMessage `json:"operations"`
}

// MarshalJSON writes {source, target, operations}.
func (r *Rule) MarshalJSON() ([]byte, error) {
	w := wireRule{Source: &r.Source, Target: &r.Target, Operations: make([]json.RawMessage, 0, len(r.Operations))}
	for i, op := range r.Operations {
		data, err := json.Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i+1, err)
		}
		w.Operations = append(w.Operations, data)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a serialized rule, validating every operation.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Source == nil {
		return fmt.Errorf("rule is missing \"source\"")
	}
	if w.Target == nil {
		return fmt.Errorf("rule is missing \"target\"")
	}
	operations := make([]ops.Operation, 0, len(w.Operations))
	for i, raw := range w.Operations {
		op, err := ops.Decode(raw)
		if err != nil {
			return fmt.Errorf("rule %s -> %s: operation %d: %w", *w.Source, *w.Target, i+1, err)
		}
		operations = append(operations, op)
	}
	*r = Rule{Source: *w.Source, Target: *w.Target, Operations: operations}
	return nil
}

// Decode parses a single serialized rule.
func Decode(data []byte) (*Rule, error) {
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
