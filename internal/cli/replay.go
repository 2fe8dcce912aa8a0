package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bmir-radx/harmonization-framework/internal/dataset"
	"github.com/bmir-radx/harmonization-framework/internal/harmonize"
	"github.com/bmir-radx/harmonization-framework/internal/replay"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Log       string
	Datasets  []string // name=path or path
	OutDir    string
	ReplayLog string // log of the replay itself; default replay_<log>
	Combine   string // optional path for all replayed datasets stacked
}

// ReplayDatasetResult describes one replayed dataset.
type ReplayDatasetResult struct {
	Dataset string `json:"dataset"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
	Output  string `json:"output"`
}

// ReplayResult is the replay command's output.
type ReplayResult struct {
	Datasets  []ReplayDatasetResult `json:"datasets"`
	ReplayLog string                `json:"replay_log"`
	Combined  string                `json:"combined,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a replay log against datasets",
		Long: `Reproduce a harmonization from its replay log.

The rules are rebuilt from the log itself, so the original rules file is not
needed. Each dataset named in the log must be supplied with --dataset, either
as name=path or as a path whose base name matches the logged name. Results are
written to <out-dir>/<name>, and the replay is itself logged.

Exit codes:
  0 - Replay completed
  1 - Replay failed (unreadable log, logged dataset not supplied, transform error)
  2 - Command error (unreadable dataset, bad flags)

Examples:
  harmonize replay --log replay.jsonl --dataset demo.csv=./raw/demo.csv --out-dir ./replayed
  harmonize replay --log replay.jsonl --dataset ./raw/demo.csv --out-dir ./replayed --combine all.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Log, "log", "", "replay log to re-run (required)")
	cmd.Flags().StringArrayVar(&opts.Datasets, "dataset", nil, "dataset as name=path or path (repeatable)")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "directory for replayed datasets (required)")
	cmd.Flags().StringVar(&opts.ReplayLog, "replay-log", "", "log for this replay (default replay_<log> beside --log)")
	cmd.Flags().StringVar(&opts.Combine, "combine", "", "also write every replayed dataset stacked into one CSV")
	_ = cmd.MarkFlagRequired("log")
	_ = cmd.MarkFlagRequired("out-dir")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	datasets, err := loadDatasets(opts.Datasets)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "create output directory", err)
	}

	logPath := opts.ReplayLog
	if logPath == "" {
		logPath = replay.OutputLogPath(opts.Log)
	}
	recorder, err := replay.Open(logPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open replay output log", err)
	}
	defer recorder.Close()

	results, err := replay.Replay(opts.Log, datasets,
		harmonize.WithRecorder(recorder),
		harmonize.WithLogger(opts.logger(cmd)),
	)
	if err != nil {
		return WrapExitError(ExitFailure, "replay failed", err)
	}
	if err := recorder.Close(); err != nil {
		return WrapExitError(ExitFailure, "close replay output log", err)
	}

	summary := ReplayResult{ReplayLog: logPath, Datasets: make([]ReplayDatasetResult, 0, len(results))}
	tables := make([]*dataset.Table, 0, len(results))
	for _, r := range results {
		path := filepath.Join(opts.OutDir, filepath.Base(r.Dataset))
		if err := dataset.WriteFile(path, r.Table); err != nil {
			return WrapExitError(ExitFailure, "write replayed dataset", err)
		}
		out.VerboseLog("replayed %s -> %s", r.Dataset, path)
		summary.Datasets = append(summary.Datasets, ReplayDatasetResult{
			Dataset: r.Dataset,
			Rows:    r.Table.NumRows(),
			Columns: r.Table.NumColumns(),
			Output:  path,
		})
		tables = append(tables, r.Table)
	}

	if opts.Combine != "" {
		path := opts.Combine
		if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
			path = filepath.Join(opts.OutDir, path)
		}
		if err := dataset.WriteFile(path, dataset.Concat(tables...)); err != nil {
			return WrapExitError(ExitFailure, "write combined dataset", err)
		}
		summary.Combined = path
	}

	return out.Success(summary, func(w io.Writer) {
		fmt.Fprintf(w, "Replayed %d dataset(s)\n", len(summary.Datasets))
		for _, d := range summary.Datasets {
			fmt.Fprintf(w, "  %s: %d rows, %d columns -> %s\n", d.Dataset, d.Rows, d.Columns, d.Output)
		}
		if summary.Combined != "" {
			fmt.Fprintf(w, "Combined: %s\n", summary.Combined)
		}
		fmt.Fprintf(w, "Replay log: %s\n", summary.ReplayLog)
	})
}

// loadDatasets reads every --dataset value. A bare path is keyed by its
// base name, which is the name harmonization logs by default.
func loadDatasets(args []string) (map[string]*dataset.Table, error) {
	if len(args) == 0 {
		return nil, NewExitError(ExitCommandError, "at least one --dataset is required")
	}
	datasets := make(map[string]*dataset.Table, len(args))
	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok {
			name, path = filepath.Base(arg), arg
		}
		if name == "" || path == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --dataset %q: expected name=path", arg))
		}
		if _, dup := datasets[name]; dup {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("dataset %q given twice", name))
		}
		table, err := dataset.ReadFile(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read dataset "+name, err)
		}
		datasets[name] = table
	}
	return datasets, nil
}
