package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bmir-radx/harmonization-framework/internal/harmonize"
	"github.com/bmir-radx/harmonization-framework/internal/jobs"
	"github.com/bmir-radx/harmonization-framework/internal/rule"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Data      string
	Rules     string
	Output    string
	ReplayLog string
	Pairs     []string
	All       bool
	Overwrite bool
	Manifest  string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harmonize a dataset synchronously",
		Long: `Harmonize one CSV dataset and write the result and its replay log.

The request is either built from flags or read from a YAML job manifest.
Validation and error codes match the harmonize RPC method.

Exit codes:
  0 - Harmonization completed
  1 - Harmonization failed (missing rule, bad value, unreadable rules)
  2 - Command error (bad flags, missing files, output exists)

Examples:
  harmonize run --data raw.csv --rules rules.json --output out.csv \
    --replay-log replay.jsonl --pair age:age_years --pair sex:gender
  harmonize run --data raw.csv --rules rules.json --output out.csv \
    --replay-log replay.jsonl --all --overwrite
  harmonize run --manifest job.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarmonize(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "input CSV dataset")
	cmd.Flags().StringVar(&opts.Rules, "rules", "", "rules JSON file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output CSV path")
	cmd.Flags().StringVar(&opts.ReplayLog, "replay-log", "", "replay log path (JSON lines)")
	cmd.Flags().StringArrayVar(&opts.Pairs, "pair", nil, "column pair source:target (repeatable)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "apply every rule in the rules file, in file order")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace an existing output file")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "YAML job manifest")
	cmd.MarkFlagsMutuallyExclusive("pair", "all")
	cmd.MarkFlagsMutuallyExclusive("manifest", "data")
	cmd.MarkFlagsMutuallyExclusive("manifest", "rules")

	return cmd
}

func runHarmonize(opts *RunOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	params, err := opts.params()
	if err != nil {
		return err
	}

	out.VerboseLog("harmonizing %s with %s (%s)", params.DataFilePath, params.RulesFilePath, params.Mode)
	result, err := jobs.Execute(params,
		harmonize.WithLogger(opts.logger(cmd)),
		harmonize.WithProgress(func(processed, total int) {
			out.VerboseLog("  %d/%d pairs", processed, total)
		}),
	)
	if err != nil {
		jerr := jobs.AsError(err)
		return WrapExitError(jobExitCode(jerr.Code), "harmonization failed", jerr)
	}

	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Harmonized %s\n", params.DataFilePath)
		fmt.Fprintf(w, "  Output:     %s\n", result.OutputPath)
		fmt.Fprintf(w, "  Replay log: %s\n", result.ReplayLogPath)
	})
}

// params builds the request from the manifest or from flags. Flag paths are
// made absolute relative to the working directory.
func (o *RunOptions) params() (jobs.HarmonizeParams, error) {
	if o.Manifest != "" {
		p, err := jobs.LoadManifest(o.Manifest)
		if err != nil {
			return jobs.HarmonizeParams{}, WrapExitError(ExitCommandError, "invalid manifest", err)
		}
		if o.Overwrite {
			p.Overwrite = true
		}
		return p, nil
	}

	p := jobs.HarmonizeParams{Mode: jobs.ModePairs, Overwrite: o.Overwrite}
	if o.All {
		p.Mode = jobs.ModeAll
	}
	for _, f := range []struct {
		flag  string
		value string
		dst   *string
	}{
		{"data", o.Data, &p.DataFilePath},
		{"rules", o.Rules, &p.RulesFilePath},
		{"output", o.Output, &p.OutputFilePath},
		{"replay-log", o.ReplayLog, &p.ReplayLogFilePath},
	} {
		if f.value == "" {
			return jobs.HarmonizeParams{}, NewExitError(ExitCommandError, fmt.Sprintf("--%s is required", f.flag))
		}
		abs, err := filepath.Abs(f.value)
		if err != nil {
			return jobs.HarmonizeParams{}, WrapExitError(ExitCommandError, "resolve --"+f.flag, err)
		}
		*f.dst = abs
	}

	if !o.All && len(o.Pairs) == 0 {
		return jobs.HarmonizeParams{}, NewExitError(ExitCommandError, "either --pair or --all is required")
	}
	for _, s := range o.Pairs {
		pair, err := rule.ParsePair(s)
		if err != nil {
			return jobs.HarmonizeParams{}, WrapExitError(ExitCommandError, "invalid --pair", err)
		}
		p.Pairs = append(p.Pairs, pair)
	}
	return p, nil
}
