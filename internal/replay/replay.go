package replay

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bmir-radx/harmonization-framework/internal/dataset"
	"github.com/bmir-radx/harmonization-framework/internal/harmonize"
	"github.com/bmir-radx/harmonization-framework/internal/rule"
)

// Result is the replayed output for one dataset.
type Result struct {
	Dataset string
	Table   *dataset.Table
}

// Plan is what a replay log says to do: the rules it carries and, per
// dataset, the pairs in the order they were applied.
type Plan struct {
	Rules    *rule.Registry
	Datasets []string
	Pairs    map[string][]rule.Pair
}

// NewPlan groups events by dataset and rebuilds a registry from the rules
// embedded in them. Identity rules are not stored; the registry answers
// those itself.
func NewPlan(events []Event) *Plan {
	p := &Plan{Rules: rule.NewRegistry(), Pairs: make(map[string][]rule.Pair)}
	for _, ev := range events {
		if _, ok := p.Pairs[ev.Dataset]; !ok {
			p.Datasets = append(p.Datasets, ev.Dataset)
		}
		pair := ev.Action.Pair()
		p.Pairs[ev.Dataset] = append(p.Pairs[ev.Dataset], pair)
		if pair.Source != pair.Target && !p.hasSame(ev.Action) {
			p.Rules.AddRule(ev.Action)
		}
	}
	return p
}

// hasSame reports whether the registry already holds an identical rule for
// the pair, so that repeated runs in one log do not warn on every event.
func (p *Plan) hasSame(r *rule.Rule) bool {
	existing, err := p.Rules.Query(r.Source, r.Target)
	if err != nil {
		return false
	}
	a, errA := rule.Fingerprint(existing)
	b, errB := rule.Fingerprint(r)
	return errA == nil && errB == nil && a == b
}

// Replay re-runs a replay log against the given datasets, keyed by the
// dataset names used in the log. No external registry is needed. Results
// are returned in the order datasets first appear in the log.
//
// Options are passed to every harmonization call; use
// harmonize.WithRecorder to log the replay itself.
func Replay(path string, datasets map[string]*dataset.Table, opts ...harmonize.Option) ([]Result, error) {
	events, err := ReadEvents(path)
	if err != nil {
		return nil, err
	}
	plan := NewPlan(events)

	for _, name := range plan.Datasets {
		if _, ok := datasets[name]; !ok {
			return nil, fmt.Errorf("replay log references dataset %q, which was not provided", name)
		}
	}

	results := make([]Result, 0, len(plan.Datasets))
	for _, name := range plan.Datasets {
		slog.Debug("replaying dataset", "dataset", name, "pairs", len(plan.Pairs[name]))
		out, err := harmonize.Dataset(datasets[name], plan.Pairs[name], plan.Rules, name, opts...)
		if err != nil {
			return nil, fmt.Errorf("replay dataset %q: %w", name, err)
		}
		results = append(results, Result{Dataset: name, Table: out})
	}
	return results, nil
}

// OutputLogPath returns the default path for the log of a replay:
// "replay_<name>" beside the input log.
func OutputLogPath(logPath string) string {
	return filepath.Join(filepath.Dir(logPath), "replay_"+filepath.Base(logPath))
}
