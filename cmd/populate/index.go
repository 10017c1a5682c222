package main

import (
	"github.com/spf13/cobra"
)

func (a *app) indexCmd() *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Print the path index of the schema",
		Long: `Print the relation keys and the selectable and sortable fields the
compiler validates populate paths against.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadCompiler()
			if err != nil {
				return err
			}
			return writeOutput(a.stdout, c.Index(), "json", !compact)
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "print JSON on one line")
	return cmd
}
