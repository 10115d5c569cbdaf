package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/solidgraph/pkg/batch"
	"github.com/openfroyo/solidgraph/pkg/policy"
	"github.com/openfroyo/solidgraph/pkg/script"
	"github.com/openfroyo/solidgraph/pkg/stores"
	"github.com/openfroyo/solidgraph/pkg/telemetry"
)

// lintOptions are the lint settings after flags override the config.
type lintOptions struct {
	maxDepth      int
	policies      []string
	disabled      []string
	failOnWarning bool
}

// lintReport is the outcome of linting one script.
type lintReport struct {
	Script string         `json:"script"`
	Result *policy.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func newLintCommand() *cobra.Command {
	var (
		maxDepth      int
		policies      []string
		disabled      []string
		failOnWarning bool
		history       string
		parallel      int
		failFast      bool
	)

	cmd := &cobra.Command{
		Use:   "lint <script>...",
		Short: "Check scenes against policies",
		Long: `Run scene scripts and check the graphs they build against OPA policies.

The built-in policies flag stray anchors, excessive depth, operations with
too few operands, empty groups and scenes with several roots. Additional
policies are loaded from .rego files or JSON/YAML bundles.

Violations of error or critical severity fail the command; warnings fail it
only with --fail-on-warning. Several scripts are linted in parallel and
reported in the order given.

When a history database is configured, every run and its findings are
recorded for the history command.`,
		Example: `  # Lint with the built-in policies
  solid lint part.star

  # Add house rules and relax one built-in
  solid lint part.star --policy ./policies --disable empty-group

  # Lint a whole directory of parts, four at a time
  solid lint parts/*.star --parallel 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx := cmd.Context()
			opts := lintOptions{
				maxDepth:      env.cfg.Lint.MaxDepth,
				policies:      append(env.cfg.Lint.Policies, policies...),
				disabled:      append(env.cfg.Lint.Disabled, disabled...),
				failOnWarning: env.cfg.Lint.FailOnWarning || failOnWarning,
			}
			if cmd.Flags().Changed("max-depth") {
				opts.maxDepth = maxDepth
			}

			engine, err := env.newPolicyEngine(ctx, opts)
			if err != nil {
				return err
			}

			var store stores.Store
			if dbPath := env.historyPath(history); dbPath != "" {
				sqlStore, err := openHistory(ctx, dbPath)
				if err != nil {
					return err
				}
				defer sqlStore.Close()
				store = sqlStore
			}

			reports := make([]lintReport, len(args))
			runner := batch.NewRunner(batch.Options{MaxParallel: parallel, FailFast: failFast},
				env.tel.Logger.NewComponentLogger("batch").Zerolog())

			results := runner.Run(ctx, args, func(ctx context.Context, i int, path string) error {
				report, err := env.lintScript(ctx, engine, store, path, opts)
				reports[i] = report
				return err
			})

			for i, res := range results {
				if reports[i].Script == "" {
					reports[i].Script = res.Item
				}
				if res.Err != nil && reports[i].Error == "" {
					reports[i].Error = res.Err.Error()
				}
			}

			if err := writeLintReports(cmd.OutOrStdout(), reports); err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
				}
			}
			if len(args) == 1 {
				return results[0].Err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scripts failed lint", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum number of graph levels (0 disables)")
	cmd.Flags().StringSliceVarP(&policies, "policy", "p", nil, "additional policy file or directory")
	cmd.Flags().StringSliceVar(&disabled, "disable", nil, "policy to disable")
	cmd.Flags().BoolVar(&failOnWarning, "fail-on-warning", false, "fail on warnings as well as errors")
	cmd.Flags().StringVar(&history, "history", "", "record runs in this history database")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 0, "scripts linted concurrently (0 for one per CPU)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first script that fails")

	return cmd
}

// lintScript runs and lints one script, recording it when store is set.
// The returned error is the script's lint outcome.
func (e *environment) lintScript(ctx context.Context, engine *policy.Engine, store stores.Store, path string, opts lintOptions) (lintReport, error) {
	report := lintReport{Script: path}
	started := time.Now()

	scene, runErr := e.run(ctx, path)

	var result *policy.Result
	if runErr == nil {
		var err error
		result, err = e.lint(ctx, engine, path, scene, opts)
		if err != nil {
			report.Error = err.Error()
			return report, err
		}
		report.Result = result
	} else {
		report.Error = runErr.Error()
	}

	if store != nil {
		if err := e.recordLint(ctx, store, path, started, scene, result, runErr); err != nil {
			return report, err
		}
	}

	if runErr != nil {
		return report, runErr
	}
	return report, lintOutcome(result, opts.failOnWarning)
}

// newPolicyEngine builds an engine with the built-ins plus the configured
// policies, minus the disabled ones.
func (e *environment) newPolicyEngine(ctx context.Context, opts lintOptions) (*policy.Engine, error) {
	engine, err := policy.NewEngine(e.tel.Logger.NewComponentLogger("policy").Zerolog())
	if err != nil {
		return nil, err
	}

	if len(opts.policies) > 0 {
		if err := engine.LoadPolicies(ctx, opts.policies); err != nil {
			return nil, err
		}
	}

	for _, name := range opts.disabled {
		if err := engine.DisablePolicy(name); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// lint checks scene and reports every finding to metrics and events.
func (e *environment) lint(ctx context.Context, engine *policy.Engine, path string, scene *script.Scene, opts lintOptions) (result *policy.Result, err error) {
	op := telemetry.StartOperation(e.tel.WithContext(ctx), "scene.lint",
		telemetry.AttrScript.String(path),
		attribute.Int("lint.policies", len(engine.ListPolicies())),
	)
	defer func() { op.End(err) }()
	logger := op.Logger.WithScript(path)

	result, err = engine.Check(op.Ctx, scene.Graph, policy.Limits{MaxDepth: opts.maxDepth}, scene.Roots...)
	if err != nil {
		return nil, err
	}

	findings := append(append([]policy.Violation{}, result.Violations...), result.Warnings...)
	for _, v := range findings {
		e.tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		if perr := e.tel.Events.PublishPolicyViolation(path, v.Node, v.Policy, string(v.Severity), v.Message); perr != nil {
			logger.WithError(perr).Debug("Event dropped")
		}
	}
	logger.WithField("findings", len(findings)).Debug("Policies evaluated")

	return result, nil
}

// writeLintReports prints reports in order. A single report is printed
// without a header, as JSON a single report is the bare result.
func writeLintReports(w io.Writer, reports []lintReport) error {
	if jsonOutput {
		if len(reports) == 1 && reports[0].Result != nil {
			return writeJSON(w, reports[0].Result)
		}
		return writeJSON(w, reports)
	}

	var buf bytes.Buffer
	for i, r := range reports {
		if len(reports) > 1 {
			if i > 0 {
				buf.WriteString("\n")
			}
			fmt.Fprintf(&buf, "%s:\n", r.Script)
		}
		if r.Result != nil {
			if err := writeLintResult(&buf, r.Result); err != nil {
				return err
			}
		}
		if r.Error != "" && (r.Result == nil || len(reports) > 1) {
			fmt.Fprintf(&buf, "error: %s\n", r.Error)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func writeLintResult(w io.Writer, result *policy.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, group := range [][]policy.Violation{result.Violations, result.Warnings} {
		for _, v := range group {
			node := v.Node
			if node == "" {
				node = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Severity, v.Policy, node, v.Message)
		}
	}
	for _, f := range result.Failures {
		fmt.Fprintf(tw, "failure\t\t\t%s\n", f)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d policies, %d violations, %d warnings\n",
		len(result.EvaluatedPolicies), len(result.Violations), len(result.Warnings))
	return err
}

// lintOutcome turns a result into the command's exit status.
func lintOutcome(result *policy.Result, failOnWarning bool) error {
	if !result.Allowed {
		return fmt.Errorf("scene failed %d policy check(s)", len(result.Violations))
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d policies could not be evaluated", len(result.Failures))
	}
	if failOnWarning && len(result.Warnings) > 0 {
		return fmt.Errorf("scene has %d policy warning(s)", len(result.Warnings))
	}
	return nil
}
