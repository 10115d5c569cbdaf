package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/solidgraph/pkg/script"
)

func newWatchCommand() *cobra.Command {
	var (
		format string
		lint   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <script>",
		Short: "Re-run a script whenever it changes",
		Long: `Run a scene script, print the scene, and repeat on every change to the
script's directory until interrupted.

With --lint, each scene is also checked against the policies, and policy
files named in the configuration are reloaded when they change.`,
		Example: `  solid watch part.star
  solid watch part.star --lint --format dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx := cmd.Context()
			logger := env.tel.Logger.NewComponentLogger("watch").Zerolog()
			out := cmd.OutOrStdout()

			opts := lintOptions{
				maxDepth:      env.cfg.Lint.MaxDepth,
				policies:      env.cfg.Lint.Policies,
				disabled:      env.cfg.Lint.Disabled,
				failOnWarning: env.cfg.Lint.FailOnWarning,
			}

			var onScene func(*script.Scene)
			if lint {
				engine, err := env.newPolicyEngine(ctx, opts)
				if err != nil {
					return err
				}
				if len(opts.policies) > 0 {
					if err := engine.Watch(ctx, opts.policies); err != nil {
						return err
					}
				}
				onScene = func(scene *script.Scene) {
					result, err := env.lint(ctx, engine, args[0], scene, opts)
					if err != nil {
						logger.Error().Err(err).Msg("Lint failed")
						return
					}
					if err := writeLintResult(out, result); err != nil {
						logger.Error().Err(err).Msg("Failed to write lint result")
					}
				}
			}

			watcher := script.NewWatcher(env.evaluator, logger)
			watcher.SetDebounce(env.cfg.Watch.Debounce.Std())

			err = watcher.Watch(ctx, args[0], func(scene *script.Scene, err error) {
				if err != nil {
					if perr := env.tel.Events.PublishScriptFailed(args[0], err.Error()); perr != nil {
						logger.Debug().Err(perr).Msg("Event dropped")
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					return
				}
				env.tel.Metrics.SetSceneNodes(scene.Graph.Len())
				if err := renderScene(out, scene.Graph, scene.Roots, env.outputFormat(format)); err != nil {
					logger.Error().Err(err).Msg("Failed to render scene")
				}
				if onScene != nil {
					onScene(scene)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "output format (tree, dot, json)")
	cmd.Flags().BoolVar(&lint, "lint", false, "check every scene against the policies")

	return cmd
}
