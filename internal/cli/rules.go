package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bmir-radx/harmonization-framework/internal/rule"
	"github.com/bmir-radx/harmonization-framework/internal/store"
)

// RulesOptions holds flags shared by the rules subcommands.
type RulesOptions struct {
	*RootOptions
	Database  string
	Project   string
	Pair      string
	Overwrite bool
}

// RuleSummary describes one rule in command output.
type RuleSummary struct {
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	Operations  int       `json:"operations"`
	Version     int       `json:"version,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate rule files and manage the rule library",
		Long: `Validate and inspect rule files, and move rules in and out of the
versioned SQLite rule library.

Importing a rule file stores a new version of each rule whose content changed;
unchanged rules are skipped. Exporting writes the latest version of every rule
in a project as a rule file.`,
	}

	cmd.AddCommand(newRulesValidateCommand(opts))
	cmd.AddCommand(newRulesListCommand(opts))
	cmd.AddCommand(newRulesImportCommand(opts))
	cmd.AddCommand(newRulesExportCommand(opts))
	cmd.AddCommand(newRulesHistoryCommand(opts))
	cmd.AddCommand(newRulesDeleteCommand(opts))

	return cmd
}

func libraryFlags(cmd *cobra.Command, opts *RulesOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the rule library database (required)")
	cmd.Flags().StringVar(&opts.Project, "project", "", "project id (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("project")
}

func newRulesValidateCommand(opts *RulesOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate <rules.json>",
		Short:         "Check a rule file against the schema and operation parameters",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRuleFile(args[0])
			if err != nil {
				return err
			}
			data := map[string]any{"path": args[0], "valid": true, "rules": reg.Len()}
			return opts.formatter(cmd).Success(data, func(w io.Writer) {
				fmt.Fprintf(w, "✓ %s: %d rule(s) valid\n", args[0], reg.Len())
			})
		},
	}
}

func newRulesListCommand(opts *RulesOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <rules.json>",
		Short:         "List the rules in a rule file, in file order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRuleFile(args[0])
			if err != nil {
				return err
			}
			summaries := make([]RuleSummary, 0, reg.Len())
			for _, r := range reg.Rules() {
				summaries = append(summaries, RuleSummary{Source: r.Source, Target: r.Target, Operations: len(r.Operations)})
			}
			out := opts.formatter(cmd)
			return out.Success(summaries, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SOURCE\tTARGET\tOPERATIONS")
				for _, r := range reg.Rules() {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Source, r.Target, len(r.Operations))
				}
				tw.Flush()
				if out.Verbose {
					for _, r := range reg.Rules() {
						fmt.Fprintf(w, "\n%s\n%s\n", r.Pair(), r)
					}
				}
			})
		},
	}
}

func newRulesImportCommand(opts *RulesOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "import <rules.json>",
		Short:         "Store a rule file in the rule library",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRuleFile(args[0])
			if err != nil {
				return err
			}
			return withLibrary(cmd.Context(), opts, func(ctx context.Context, st *store.Store) error {
				created, err := st.ImportRegistry(ctx, opts.Project, reg)
				if err != nil {
					return WrapExitError(ExitFailure, "import rules", err)
				}
				data := map[string]any{"project": opts.Project, "rules": reg.Len(), "new_versions": created}
				return opts.formatter(cmd).Success(data, func(w io.Writer) {
					fmt.Fprintf(w, "Imported %d rule(s) into %s: %d new version(s)\n", reg.Len(), opts.Project, created)
				})
			})
		},
	}
	libraryFlags(cmd, opts)
	return cmd
}

func newRulesExportCommand(opts *RulesOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "export <rules.json>",
		Short:         "Write the latest rules of a project as a rule file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !opts.Overwrite {
				return NewExitError(ExitCommandError, fmt.Sprintf("output path already exists: %s", path))
			}
			return withLibrary(cmd.Context(), opts, func(ctx context.Context, st *store.Store) error {
				reg, err := st.ExportRegistry(ctx, opts.Project)
				if err != nil {
					return WrapExitError(ExitFailure, "export rules", err)
				}
				if reg.Len() == 0 {
					return NewExitError(ExitFailure, fmt.Sprintf("project %q has no rules", opts.Project))
				}
				if err := reg.Save(path); err != nil {
					return WrapExitError(ExitFailure, "write rule file", err)
				}
				data := map[string]any{"project": opts.Project, "rules": reg.Len(), "path": path}
				return opts.formatter(cmd).Success(data, func(w io.Writer) {
					fmt.Fprintf(w, "Exported %d rule(s) from %s to %s\n", reg.Len(), opts.Project, path)
				})
			})
		},
	}
	libraryFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace an existing rule file")
	return cmd
}

func newRulesHistoryCommand(opts *RulesOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored rule versions",
		Long: `Show every stored version in a project, or only the versions of one
pair with --pair source:target.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd.Context(), opts, func(ctx context.Context, st *store.Store) error {
				var (
					stored []store.StoredRule
					err    error
				)
				if opts.Pair != "" {
					pair, perr := rule.ParsePair(opts.Pair)
					if perr != nil {
						return WrapExitError(ExitCommandError, "invalid --pair", perr)
					}
					stored, err = st.History(ctx, opts.Project, pair.Source, pair.Target)
				} else {
					stored, err = st.ListRules(ctx, opts.Project)
				}
				if errors.Is(err, store.ErrNotFound) {
					return WrapExitError(ExitFailure, "no stored versions", err)
				}
				if err != nil {
					return WrapExitError(ExitFailure, "read rule history", err)
				}

				summaries := make([]RuleSummary, 0, len(stored))
				for _, s := range stored {
					summaries = append(summaries, RuleSummary{
						Source:      s.Rule.Source,
						Target:      s.Rule.Target,
						Operations:  len(s.Rule.Operations),
						Version:     s.Version,
						Fingerprint: s.Fingerprint,
						CreatedAt:   s.CreatedAt,
					})
				}
				return opts.formatter(cmd).Success(summaries, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "SOURCE\tTARGET\tVERSION\tOPERATIONS\tFINGERPRINT\tCREATED")
					for _, s := range summaries {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", s.Source, s.Target, s.Version,
							s.Operations, s.Fingerprint[:12], s.CreatedAt.Format(time.RFC3339))
					}
					tw.Flush()
				})
			})
		},
	}
	libraryFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Pair, "pair", "", "only this pair (source:target)")
	return cmd
}

func newRulesDeleteCommand(opts *RulesOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "delete",
		Short:         "Remove every stored version of a pair",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := rule.ParsePair(opts.Pair)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --pair", err)
			}
			return withLibrary(cmd.Context(), opts, func(ctx context.Context, st *store.Store) error {
				n, err := st.DeleteRule(ctx, opts.Project, pair.Source, pair.Target)
				if err != nil {
					return WrapExitError(ExitFailure, "delete rule", err)
				}
				if n == 0 {
					return NewExitError(ExitFailure, fmt.Sprintf("no stored versions of %s in %s", pair, opts.Project))
				}
				data := map[string]any{"project": opts.Project, "source": pair.Source, "target": pair.Target, "deleted": n}
				return opts.formatter(cmd).Success(data, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted %d version(s) of %s from %s\n", n, pair, opts.Project)
				})
			})
		},
	}
	libraryFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Pair, "pair", "", "pair to delete (source:target, required)")
	_ = cmd.MarkFlagRequired("pair")
	return cmd
}

// loadRuleFile loads and validates a rule file. Schema and operation errors
// are failures; an unreadable file is a command error.
func loadRuleFile(path string) (*rule.Registry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "read rule file", err)
	}
	reg := rule.NewRegistry()
	if err := reg.Load(path, true); err != nil {
		return nil, WrapExitError(ExitFailure, "invalid rule file "+path, err)
	}
	return reg, nil
}

func withLibrary(ctx context.Context, opts *RulesOptions, fn func(context.Context, *store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open rule library", err)
	}
	defer st.Close()
	return fn(ctx, st)
}
