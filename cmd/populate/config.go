package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func (a *app) configCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	var showSource bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the effective configuration after merging defaults, config file, environment variables and flags.`,
		Example: `  # Show effective configuration
  populate config show

  # Show configuration with source file path
  populate config show --source`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showSource {
				if a.configPath != "" {
					fmt.Fprintf(a.stdout, "Config file: %s\n\n", a.configPath)
				} else {
					fmt.Fprintln(a.stdout, "Config file: (none, using defaults)")
					fmt.Fprintln(a.stdout)
				}
			}

			out, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(out)
			return err
		},
	}
	showCmd.Flags().BoolVar(&showSource, "source", false, "show config file source")
	configCmd.AddCommand(showCmd)
	return configCmd
}
