package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmir-radx/harmonization-framework/internal/dataset"
	"github.com/bmir-radx/harmonization-framework/internal/harmonize"
	"github.com/bmir-radx/harmonization-framework/internal/replay"
	"github.com/bmir-radx/harmonization-framework/internal/rule"
)

// Execute runs one harmonization request to completion on the calling
// goroutine. Every failure is returned as an *Error.
//
// Steps, in order: absolute-path checks, existence checks for the data and
// rules files, the overwrite check, rule loading, pair resolution, then the
// harmonization itself (directory creation, read, transform with replay
// logging, write). Options are passed to the harmonize engine.
func Execute(p HarmonizeParams, opts ...harmonize.Option) (*Result, error) {
	if err := checkPaths(p); err != nil {
		return nil, err
	}

	reg := rule.NewRegistry()
	if err := reg.Load(p.RulesFilePath, true); err != nil {
		return nil, Errorf(CodeInvalidFormat, "Failed to load rules: %v", err)
	}

	pairs, err := resolvePairs(p, reg)
	if err != nil {
		return nil, err
	}

	if err := run(p, reg, pairs, opts); err != nil {
		return nil, AsError(err)
	}
	return &Result{OutputPath: p.OutputFilePath, ReplayLogPath: p.ReplayLogFilePath}, nil
}

func checkPaths(p HarmonizeParams) error {
	for _, path := range []struct{ name, value string }{
		{"data_file_path", p.DataFilePath},
		{"rules_file_path", p.RulesFilePath},
		{"output_file_path", p.OutputFilePath},
		{"replay_log_file_path", p.ReplayLogFilePath},
	} {
		if !filepath.IsAbs(path.value) {
			return NewError(CodeInvalidPath, path.name+" must be an absolute path",
				map[string]any{"path": path.value, "path_type": path.name})
		}
	}

	if !exists(p.DataFilePath) {
		return NewError(CodeFileNotFound, "Data file not found: "+p.DataFilePath,
			map[string]any{"path": p.DataFilePath, "path_type": "data_path"})
	}
	if !exists(p.RulesFilePath) {
		return NewError(CodeFileNotFound, "Rules file not found: "+p.RulesFilePath,
			map[string]any{"path": p.RulesFilePath, "path_type": "rules_path"})
	}
	if exists(p.OutputFilePath) && !p.Overwrite {
		return NewError(CodeAlreadyExists, "Output path already exists: "+p.OutputFilePath,
			map[string]any{"path": p.OutputFilePath, "path_type": "output_path"})
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

func resolvePairs(p HarmonizeParams, reg *rule.Registry) ([]rule.Pair, error) {
	if p.Mode == ModeAll {
		pairs := reg.ListPairs()
		if len(pairs) == 0 {
			return nil, NewError(CodeRuleNotFound, "No rules found in rules file",
				map[string]any{"path": p.RulesFilePath})
		}
		return pairs, nil
	}

	if len(p.Pairs) == 0 {
		return nil, NewError(CodeMissingField, "pairs is required when mode is 'pairs'",
			map[string]any{"field": "pairs"})
	}
	for _, pair := range p.Pairs {
		if _, err := reg.Query(pair.Source, pair.Target); err != nil {
			return nil, NewError(CodeRuleNotFound,
				fmt.Sprintf("Rule not found for source=%s target=%s", pair.Source, pair.Target),
				map[string]any{"source": pair.Source, "target": pair.Target})
		}
	}
	return p.Pairs, nil
}

func run(p HarmonizeParams, reg *rule.Registry, pairs []rule.Pair, opts []harmonize.Option) error {
	for _, dir := range []string{filepath.Dir(p.OutputFilePath), filepath.Dir(p.ReplayLogFilePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	table, err := dataset.ReadFile(p.DataFilePath)
	if err != nil {
		return err
	}

	log, err := replay.Open(p.ReplayLogFilePath)
	if err != nil {
		return err
	}
	defer log.Close()

	opts = append(opts[:len(opts):len(opts)], harmonize.WithRecorder(log))
	out, err := harmonize.Dataset(table, pairs, reg, filepath.Base(p.DataFilePath), opts...)
	if err != nil {
		return err
	}
	if err := dataset.WriteFile(p.OutputFilePath, out); err != nil {
		return err
	}
	return log.Close()
}
