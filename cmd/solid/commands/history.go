package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/solidgraph/pkg/policy"
	"github.com/openfroyo/solidgraph/pkg/script"
	"github.com/openfroyo/solidgraph/pkg/stores"
)

// openHistory opens the run history at path, creating it if needed.
func openHistory(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate history %s: %w", path, err)
	}
	return store, nil
}

// historyPath returns the history database selected by flag or config.
func (e *environment) historyPath(flag string) string {
	if flag != "" {
		return flag
	}
	return e.cfg.History.Path
}

// recordLint stores one lint run. scene and result are nil when the script
// failed with runErr.
func (e *environment) recordLint(ctx context.Context, store stores.Store, scriptPath string, started time.Time, scene *script.Scene, result *policy.Result, runErr error) error {
	if abs, err := filepath.Abs(scriptPath); err == nil {
		scriptPath = abs
	}

	run := &stores.Run{
		Script:    scriptPath,
		Kind:      stores.RunKindLint,
		Status:    stores.RunStatusPassed,
		Duration:  time.Since(started),
		StartedAt: started,
	}

	if runErr != nil {
		msg := runErr.Error()
		run.Status = stores.RunStatusError
		run.Error = &msg
	}
	if scene != nil {
		summary := policy.Summarize(scene.Graph, scene.Roots...)
		run.Nodes = len(summary.Nodes)
		run.Roots = len(summary.Roots)
		run.MaxDepth = summary.MaxDepth
	}
	if result != nil {
		if !result.Allowed {
			run.Status = stores.RunStatusFailed
		}
		for _, group := range [][]policy.Violation{result.Violations, result.Warnings} {
			for _, v := range group {
				run.Findings = append(run.Findings, stores.Finding{
					Policy:   v.Policy,
					Severity: string(v.Severity),
					Node:     v.Node,
					Message:  v.Message,
				})
			}
		}
	}

	if err := store.RecordRun(ctx, run); err != nil {
		return err
	}

	if keep := e.cfg.History.Keep; keep > 0 {
		pruned, err := store.PruneRuns(ctx, scriptPath, keep)
		if err != nil {
			return err
		}
		if pruned > 0 {
			e.logger.Debug().
				Str("script", scriptPath).
				Int64("pruned", pruned).
				Msg("Pruned run history")
		}
	}

	return nil
}

func newHistoryCommand() *cobra.Command {
	var (
		dbPath string
		limit  int
		stats  bool
		failed bool
	)

	cmd := &cobra.Command{
		Use:   "history [script]",
		Short: "Show recorded lint runs",
		Long: `Show the lint runs recorded in the history database.

Runs are recorded by lint when history.path is configured or --history is
given. With --stats, the number of findings per policy is shown instead.`,
		Example: `  # Last runs of every script
  solid history --history .solid/history.db

  # Which policies fire most for one script
  solid history part.star --stats`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := dbPath
			if path == "" {
				path = cfg.History.Path
			}
			if path == "" {
				return fmt.Errorf("no history database: set history.path or pass --history")
			}

			ctx := cmd.Context()
			store, err := openHistory(ctx, path)
			if err != nil {
				return err
			}
			defer store.Close()

			var scriptPath string
			if len(args) > 0 {
				scriptPath, err = filepath.Abs(args[0])
				if err != nil {
					return err
				}
			}

			if stats {
				counts, err := store.CountFindings(ctx, scriptPath)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), counts)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "POLICY\tFINDINGS")
				for _, c := range counts {
					fmt.Fprintf(tw, "%s\t%d\n", c.Policy, c.Count)
				}
				return tw.Flush()
			}

			filter := stores.RunFilter{Script: scriptPath, Limit: limit}
			if failed {
				filter.Status = stores.RunStatusFailed
			}
			runs, err := store.ListRuns(ctx, filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), runs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSTATUS\tNODES\tDEPTH\tDURATION\tSCRIPT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					r.StartedAt.Format(time.RFC3339), r.Status, r.Nodes, r.MaxDepth,
					r.Duration.Round(time.Millisecond), r.Script)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "history", "", "history database path")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 for all)")
	cmd.Flags().BoolVar(&stats, "stats", false, "count findings per policy")
	cmd.Flags().BoolVar(&failed, "failed", false, "only show failed runs")

	return cmd
}
