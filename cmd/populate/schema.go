package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hanpama/populate/internal/schema"
)

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Validate the schema and print it as SDL",
		Long: `Load the configured schema, report violations, and print the reachable
declarations as GraphQL SDL with @sortable directives.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadCompiler()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.stdout, schema.Render(c.Schema()))
			return err
		},
	}
}
