package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// serviceVersion is reported to tracing and metrics.
	serviceVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	serviceVersion = version

	rootCmd := &cobra.Command{
		Use:   "solid",
		Short: "solidgraph - scene graph builder for solid models",
		Long: `solidgraph builds scene graphs of solid models from Starlark scripts.

Scripts create nodes, attach them into a directed acyclic graph with the
* operator and nested scopes, and reuse parts through modules and anchors.
The resulting scene can be printed, placed and linted against OPA policies.

Features:
  - Starlark scene scripts with modules, anchors and transforms
  - Absolute placements of any node in the scene
  - Policy checks via OPA/rego, with a SQLite run history
  - Typed configuration via CUE, YAML or JSON
  - Watch mode re-running scripts on change`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newTreeCommand())
	rootCmd.AddCommand(newPlacementsCommand())
	rootCmd.AddCommand(newLintCommand())
	rootCmd.AddCommand(newPoliciesCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
