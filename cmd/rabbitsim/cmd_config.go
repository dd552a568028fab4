package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after applying defaults, the config file and
RABBITSIM_* environment variables.

Configuration is read from ~/.rabbitsim/config.yaml unless --config is given.

Examples:
  rabbitsim config                       # YAML, ready to save as config.yaml
  rabbitsim config --validate            # exit non-zero on invalid settings
  RABBITSIM_RUNS=500 rabbitsim config --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			validate, _ := cmd.Flags().GetBool("validate")
			path, _ := cmd.Flags().GetString("config")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = config.DefaultPath()
			}

			out := cmd.OutOrStdout()
			if validate {
				verr := cfg.Validate()
				if jsonOut {
					result := map[string]any{"valid": verr == nil, "path": path}
					if verr != nil {
						result["error"] = verr.Error()
					}
					if err := printJSON(out, result); err != nil {
						return err
					}
					return verr
				}
				if verr != nil {
					return fmt.Errorf("invalid configuration: %w", verr)
				}
				fmt.Fprintf(out, "Configuration is valid (%s)\n", path)
				return nil
			}

			if jsonOut {
				return printJSON(out, cfg)
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "# effective configuration (file: %s)\n", path)
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().Bool("validate", false, "Validate the configuration and report errors")
	return cmd
}
