package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPoliciesCommand() *cobra.Command {
	var policies []string

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List the policies lint would evaluate",
		Example: `  solid policies
  solid policies --policy ./policies --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			engine, err := env.newPolicyEngine(cmd.Context(), lintOptions{
				policies: append(env.cfg.Lint.Policies, policies...),
				disabled: env.cfg.Lint.Disabled,
			})
			if err != nil {
				return err
			}

			list := engine.ListPolicies()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), list)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSEVERITY\tENABLED\tTAGS\tDESCRIPTION")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n",
					p.Name, p.Severity, p.Enabled, strings.Join(p.Tags, ","), p.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVarP(&policies, "policy", "p", nil, "additional policy file or directory")

	return cmd
}
