package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bmir-radx/harmonization-framework/internal/rule"
)

// Mode selects which pairs a job applies.
type Mode string

const (
	// ModePairs applies the pairs listed in the request.
	ModePairs Mode = "pairs"
	// ModeAll applies every pair in the rules file, in file order.
	ModeAll Mode = "all"
)

// HarmonizeParams are the parameters of a harmonize request.
type HarmonizeParams struct {
	DataFilePath      string      `json:"data_file_path" yaml:"data_file_path"`
	RulesFilePath     string      `json:"rules_file_path" yaml:"rules_file_path"`
	ReplayLogFilePath string      `json:"replay_log_file_path" yaml:"replay_log_file_path"`
	OutputFilePath    string      `json:"output_file_path" yaml:"output_file_path"`
	Mode              Mode        `json:"mode" yaml:"mode"`
	Pairs             []rule.Pair `json:"harmonization_pairs,omitempty" yaml:"harmonization_pairs,omitempty"`
	Overwrite         bool        `json:"overwrite" yaml:"overwrite"`
}

// Validate checks the request shape. Path and file problems are left to
// the worker, which reports them through the job.
func (p HarmonizeParams) Validate() error {
	var problems []string
	switch p.Mode {
	case ModePairs, ModeAll:
	case "":
		problems = append(problems, "mode: field required")
	default:
		problems = append(problems, fmt.Sprintf("mode: must be 'pairs' or 'all', got %q", p.Mode))
	}
	for i, pair := range p.Pairs {
		if pair.Source == "" {
			problems = append(problems, fmt.Sprintf("harmonization_pairs.%d.source: field required", i))
		}
		if pair.Target == "" {
			problems = append(problems, fmt.Sprintf("harmonization_pairs.%d.target: field required", i))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type pairWire struct {
	Source *string `json:"source"`
	Target *string `json:"target"`
}

type paramsWire struct {
	DataFilePath      *string     `json:"data_file_path"`
	RulesFilePath     *string     `json:"rules_file_path"`
	ReplayLogFilePath *string     `json:"replay_log_file_path"`
	OutputFilePath    *string     `json:"output_file_path"`
	Mode              *string     `json:"mode"`
	Pairs             *[]pairWire `json:"harmonization_pairs"`
	PairsAlias        *[]pairWire `json:"pairs"`
	Overwrite         *bool       `json:"overwrite"`
}

// ParseParams decodes and validates harmonize parameters from JSON.
// "pairs" is accepted as an alias of "harmonization_pairs".
func ParseParams(data []byte) (HarmonizeParams, error) {
	var w paramsWire
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return HarmonizeParams{}, fmt.Errorf("invalid params: %w", err)
	}

	var problems []string
	required := func(name string, v *string) string {
		if v == nil {
			problems = append(problems, name+": field required")
			return ""
		}
		return *v
	}
	p := HarmonizeParams{
		DataFilePath:      required("data_file_path", w.DataFilePath),
		RulesFilePath:     required("rules_file_path", w.RulesFilePath),
		ReplayLogFilePath: required("replay_log_file_path", w.ReplayLogFilePath),
		OutputFilePath:    required("output_file_path", w.OutputFilePath),
		Mode:              Mode(required("mode", w.Mode)),
	}
	if w.Overwrite != nil {
		p.Overwrite = *w.Overwrite
	}

	pairs := w.Pairs
	if pairs == nil {
		pairs = w.PairsAlias
	}
	if pairs != nil {
		p.Pairs = make([]rule.Pair, 0, len(*pairs))
		for i, pw := range *pairs {
			src := required(fmt.Sprintf("harmonization_pairs.%d.source", i), pw.Source)
			tgt := required(fmt.Sprintf("harmonization_pairs.%d.target", i), pw.Target)
			p.Pairs = append(p.Pairs, rule.Pair{Source: src, Target: tgt})
		}
	}
	if len(problems) > 0 {
		return HarmonizeParams{}, errors.New(strings.Join(problems, "; "))
	}
	if err := p.Validate(); err != nil {
		return HarmonizeParams{}, err
	}
	return p, nil
}

// LoadManifest reads harmonize parameters from a YAML job manifest.
// Relative paths are resolved against the manifest's directory.
func LoadManifest(path string) (HarmonizeParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return HarmonizeParams{}, fmt.Errorf("read manifest: %w", err)
	}
	var p HarmonizeParams
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return HarmonizeParams{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return HarmonizeParams{}, err
	}
	for _, field := range []*string{&p.DataFilePath, &p.RulesFilePath, &p.ReplayLogFilePath, &p.OutputFilePath} {
		if *field != "" && !filepath.IsAbs(*field) {
			*field = filepath.Join(base, *field)
		}
	}
	if err := p.Validate(); err != nil {
		return HarmonizeParams{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return p, nil
}
