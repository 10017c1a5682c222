// Command populate compiles populate paths into structured query
// descriptors.
//
// Usage:
//
//	populate [flags] <command>
//
// The schema is read from a GraphQL SDL file, a directory of SDL files, or
// a YAML/JSON declaration document. See `populate help` for the commands.
package main

import (
	"context"
	"os"

	"github.com/hanpama/populate/internal/cli"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		cli.ExitWithError(err)
	}
}
