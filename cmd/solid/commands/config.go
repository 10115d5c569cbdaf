package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/solidgraph/pkg/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
		Long: `Commands for working with solidgraph configuration.

Configuration is read from --config or the first of solid.cue, solid.yaml,
solid.yml and solid.json found in the working directory. Files are unified
with the CUE schema, so unset fields take their defaults.`,
	}

	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSchemaCommand())

	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate configuration files",
		Long: `Validate configuration files against the schema.

This command checks:
  - CUE, YAML and JSON syntax
  - Schema conformance and defaults
  - Field constraints such as log levels and durations
  - Consistency between unified files`,
		Example: `  # Validate the discovered configuration
  solid config validate

  # Validate a base file refined by a local override
  solid config validate solid.cue local.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				if configPath != "" {
					paths = []string{configPath}
				} else if found, ok := config.Discover("."); ok {
					paths = []string{found}
				}
			}

			_, err := config.NewParser().Load(paths...)
			if err != nil {
				var loadErr *config.LoadError
				if errors.As(err, &loadErr) {
					for _, ve := range loadErr.Errors {
						fmt.Fprintln(cmd.ErrOrStderr(), ve.String())
					}
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid (%d file(s))\n", len(paths))
			return nil
		},
	}
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			return writeYAML(cmd.OutOrStdout(), cfg)
		},
	}
}

func newConfigSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [name]",
		Short: "Print the configuration schema",
		Long: `Print the CUE schema configuration files are unified with.

With a name, only that section is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_, err := io.WriteString(cmd.OutOrStdout(), config.ConfigSchema)
				return err
			}

			registry := config.NewParser().Schemas()
			schema, ok := registry.GetSchema(args[0])
			if !ok {
				return fmt.Errorf("unknown schema %q (available: %v)", args[0], registry.ListSchemas())
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%v\n", schema)
			return err
		},
	}
}

// writeYAML encodes cfg as YAML through its JSON form, so durations keep
// their string representation.
func writeYAML(w io.Writer, v interface{}) error {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return err
	}
	var doc interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
