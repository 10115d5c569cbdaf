package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/solidgraph/pkg/dag"
	"github.com/openfroyo/solidgraph/pkg/policy"
	"github.com/openfroyo/solidgraph/pkg/script"
)

func newTreeCommand() *cobra.Command {
	var (
		export string
		format string
	)

	cmd := &cobra.Command{
		Use:   "tree <script>",
		Short: "Print the scene graph built by a script",
		Long: `Run a scene script and print the graph it builds.

Formats:
  - tree: indented outline, one line per path to a node
  - dot:  Graphviz digraph, one vertex per node
  - json: node summary with classes, depths and edges`,
		Example: `  # Print every root of the scene
  solid tree part.star

  # Print one exported node as Graphviz
  solid tree part.star --export body --format dot | dot -Tsvg > body.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			scene, err := env.run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			roots, err := selectRoots(scene, export)
			if err != nil {
				return err
			}

			env.logger.Debug().
				Str("script", args[0]).
				Int("nodes", scene.Graph.Len()).
				Int("roots", len(roots)).
				Msg("Rendering scene")

			env.tel.Metrics.SetSceneNodes(scene.Graph.Len())
			return renderScene(cmd.OutOrStdout(), scene.Graph, roots, env.outputFormat(format))
		},
	}

	cmd.Flags().StringVarP(&export, "export", "e", "", "render only the named export")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format (tree, dot, json)")

	return cmd
}

// selectRoots returns the scene roots, or the root of one export.
func selectRoots(scene *script.Scene, export string) ([]dag.NodeID, error) {
	if export == "" {
		return scene.Roots, nil
	}
	chain, ok := scene.Exports[export]
	if !ok {
		return nil, fmt.Errorf("script has no export %q (exports: %s)",
			export, strings.Join(scene.ExportNames(), ", "))
	}
	return []dag.NodeID{chain.Root}, nil
}

func renderScene(w io.Writer, g *dag.Graph, roots []dag.NodeID, format string) error {
	switch format {
	case "tree":
		for _, r := range roots {
			if _, err := io.WriteString(w, g.Dump(r)); err != nil {
				return err
			}
		}
		return nil
	case "dot":
		_, err := io.WriteString(w, g.ToDOT(roots...))
		return err
	case "json":
		return writeJSON(w, policy.Summarize(g, roots...))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
