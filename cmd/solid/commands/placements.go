package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/solidgraph/pkg/dag"
	"github.com/openfroyo/solidgraph/pkg/transform"
)

// placementReport lists the absolute transforms of one node.
type placementReport struct {
	Node       string          `json:"node"`
	Label      string          `json:"label"`
	Transforms [][4][4]float64 `json:"transforms"`
}

func newPlacementsCommand() *cobra.Command {
	var export string

	cmd := &cobra.Command{
		Use:   "placements <script>",
		Short: "Print the absolute transforms of scene nodes",
		Long: `Run a scene script and print where nodes end up in the scene.

With --export, every front of the named export is reported with each distinct
absolute transform it appears under. Without it, every outermost layer below
the scene roots is reported with the transform of its path.`,
		Example: `  # Where do the layers end up?
  solid placements part.star

  # Every placement of the exported bolt
  solid placements part.star --export bolt --json`,
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

			var reports []placementReport
			if export == "" {
				for _, p := range scene.Layers() {
					reports = append(reports, newPlacementReport(scene.Graph, p.Node, []transform.Affine{p.Transform}))
				}
			} else {
				chain, ok := scene.Exports[export]
				if !ok {
					return fmt.Errorf("script has no export %q (exports: %s)",
						export, strings.Join(scene.ExportNames(), ", "))
				}
				for _, front := range chain.Fronts {
					reports = append(reports, newPlacementReport(scene.Graph, front, transform.Placements(scene.Graph, front)))
				}
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), reports)
			}
			return writePlacements(cmd.OutOrStdout(), reports)
		},
	}

	cmd.Flags().StringVarP(&export, "export", "e", "", "report the fronts of the named export")

	return cmd
}

func newPlacementReport(g *dag.Graph, id dag.NodeID, transforms []transform.Affine) placementReport {
	r := placementReport{
		Node:       id.String(),
		Label:      g.Label(id),
		Transforms: make([][4][4]float64, 0, len(transforms)),
	}
	for _, t := range transforms {
		r.Transforms = append(r.Transforms, t.Rows())
	}
	return r
}

func writePlacements(w io.Writer, reports []placementReport) error {
	for _, r := range reports {
		if _, err := fmt.Fprintf(w, "%s %s\n", r.Node, r.Label); err != nil {
			return err
		}
		for _, rows := range r.Transforms {
			if _, err := fmt.Fprintf(w, "  %s\n", transform.FromRows(rows)); err != nil {
				return err
			}
		}
	}
	return nil
}
