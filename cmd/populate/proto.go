package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hanpama/populate/internal/cli"
	"github.com/hanpama/populate/internal/rpc"
)

func (a *app) protoCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "proto",
		Short: "Print the gRPC service definition",
		Example: `  # Print to stdout
  populate proto

  # Write populate/v1/compiler.proto below ./proto
  populate proto --out proto`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return rpc.Render(a.stdout)
			}
			fp := filepath.Join(outDir, rpc.FilePath)
			if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
				return cli.GeneralError("creating output directory", err)
			}
			f, err := os.Create(fp)
			if err != nil {
				return cli.GeneralError("creating output file", err)
			}
			defer f.Close()
			if err := rpc.Render(f); err != nil {
				return cli.GeneralError("rendering proto", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: stdout)")
	return cmd
}
