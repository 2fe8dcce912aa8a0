// Package harmonize applies harmonization rules to datasets.
//
// For each requested (source, target) pair, the engine looks up the rule,
// transforms every value of the source column and stores the result under
// the target name. Two provenance columns are appended afterwards:
// "source dataset" and "original_id".
//
// Any rule failure aborts the whole call. There is no partial-row or
// partial-column recovery.
package harmonize

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bmir-radx/harmonization-framework/internal/dataset"
	"github.com/bmir-radx/harmonization-framework/internal/rule"
)

// Provenance column names.
const (
	SourceDatasetColumn = "source dataset"
	OriginalIDColumn    = "original_id"
)

// Querier resolves the rule for a column pair. *rule.Registry implements it.
type Querier interface {
	Query(source, target string) (*rule.Rule, error)
}

// Recorder receives every rule the engine applies, before it is applied.
// The replay logger implements it.
type Recorder interface {
	Record(r *rule.Rule, dataset string) error
}

// ProgressFunc is called after each pair with the number of pairs processed
// so far and the total. It must not block for long.
type ProgressFunc func(processed, total int)

type options struct {
	recorder Recorder
	progress ProgressFunc
	logger   *slog.Logger
}

// Option configures a harmonization run.
type Option func(*options)

// WithRecorder records each applied rule.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithProgress reports per-pair progress.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Dataset harmonizes table and returns a new table; table is not modified.
//
// Pairs are applied in order. Values always come from the source column of
// the input table, so several pairs may read the same source. The result is
// placed in the target column when it already exists, otherwise in the
// source column's position (renamed), otherwise in a new trailing column.
func Dataset(table *dataset.Table, pairs []rule.Pair, rules Querier, name string, opts ...Option) (*dataset.Table, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	out := table.Clone()
	for i, p := range pairs {
		o.logger.Debug("requested rule", "source", p.Source, "target", p.Target, "dataset", name)

		r, err := rules.Query(p.Source, p.Target)
		if err != nil {
			return nil, err
		}
		src, ok := table.Column(p.Source)
		if !ok {
			return nil, fmt.Errorf("dataset %q has no column %q", name, p.Source)
		}
		if o.recorder != nil {
			if err := o.recorder.Record(r, name); err != nil {
				return nil, fmt.Errorf("record rule %s: %w", p, err)
			}
		}

		values := make([]any, len(src.Values))
		for row, v := range src.Values {
			values[row], err = r.Transform(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
		}

		if err := place(out, p, values); err != nil {
			return nil, err
		}
		if o.progress != nil {
			o.progress(i+1, len(pairs))
		}
	}

	sources := make([]any, table.NumRows())
	ids := make([]any, table.NumRows())
	for row := range sources {
		sources[row] = name
		ids[row] = int64(row)
	}
	if err := out.SetColumn(SourceDatasetColumn, sources); err != nil {
		return nil, err
	}
	if err := out.SetColumn(OriginalIDColumn, ids); err != nil {
		return nil, err
	}
	return out, nil
}

func place(out *dataset.Table, p rule.Pair, values []any) error {
	if !out.Has(p.Target) && out.Has(p.Source) {
		if err := out.Rename(p.Source, p.Target); err != nil {
			return err
		}
	}
	return out.SetColumn(p.Target, values)
}

// File reads a CSV file, harmonizes it and writes the result to output.
// An empty name defaults to the input file's base name.
func File(input, output string, pairs []rule.Pair, rules Querier, name string, opts ...Option) (*dataset.Table, error) {
	if name == "" {
		name = filepath.Base(input)
	}
	table, err := dataset.ReadFile(input)
	if err != nil {
		return nil, err
	}
	out, err := Dataset(table, pairs, rules, name, opts...)
	if err != nil {
		return nil, err
	}
	if err := dataset.WriteFile(output, out); err != nil {
		return nil, err
	}
	return out, nil
}
