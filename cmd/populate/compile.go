package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/populate/internal/cli"
	"github.com/hanpama/populate/internal/compiler"
	"github.com/hanpama/populate/internal/populate"
	"github.com/hanpama/populate/internal/rpc"
)

type compileFlags struct {
	request    string
	populate   []string
	selectable []string
	sort       []string
	selectKey  string
	includeKey string
	sortKey    string
	emptyRoot  string
	explain    bool
	format     string
	pretty     bool
	remote     string
}

func (a *app) compileCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile populate paths into a query descriptor",
		Long: `Compile populate paths into a query descriptor.

The request comes from flags, or from a JSON/YAML request document given
with --request ("-" reads stdin). Flags are applied on top of the document.`,
		Example: `  # Populate a relation and sort it
  populate compile --populate posts.comments --sort posts.comments.createdAt:desc

  # Restrict root fields
  populate compile --populate profile --select id,name

  # Show accepted and dropped paths
  populate compile --populate posts,nope --explain

  # Compile on a running server
  populate compile --remote localhost:9090 --populate posts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := a.compileRequest(cmd, f)
			if err != nil {
				return err
			}
			format := resolveString(f.format, a.cfg.Output.Format)
			if format != "json" && format != "msgpack" {
				return cli.GeneralError(fmt.Sprintf("unknown output format %q", format), nil)
			}
			pretty := f.pretty || a.cfg.Output.Pretty

			if f.remote != "" {
				if f.explain {
					return cli.GeneralError("--explain is not supported with --remote", nil)
				}
				client := rpc.NewClient(f.remote)
				defer client.Close()
				out, err := client.Compile(cmd.Context(), req)
				if err != nil {
					return cli.RemoteError("compiling on "+f.remote, err)
				}
				return writeOutput(a.stdout, out.AsMap(), format, pretty)
			}

			c, err := a.loadCompiler()
			if err != nil {
				return err
			}
			if f.explain {
				return writeOutput(a.stdout, c.Explain(cmd.Context(), req), format, pretty)
			}
			return writeOutput(a.stdout, c.Compile(cmd.Context(), req), format, pretty)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.request, "request", "r", "", `JSON or YAML request document ("-" for stdin)`)
	fl.StringSliceVarP(&f.populate, "populate", "p", nil, "populate paths (repeatable, comma separated)")
	fl.StringSliceVar(&f.selectable, "select", nil, "root fields to select")
	fl.StringArrayVar(&f.sort, "sort", nil, "sort as field[:asc|desc] (repeatable)")
	fl.StringVar(&f.selectKey, "select-key", "", "output key for field selection")
	fl.StringVar(&f.includeKey, "include-key", "", "output key for relation inclusion")
	fl.StringVar(&f.sortKey, "sort-key", "", "output key for sort specifications")
	fl.StringVar(&f.emptyRoot, "empty-root", "", "empty root policy: returnAll, leaveEmpty")
	fl.BoolVar(&f.explain, "explain", false, "print accepted and dropped paths with the output")
	fl.StringVar(&f.format, "format", "", "output format: json, msgpack")
	fl.BoolVar(&f.pretty, "pretty", false, "indent JSON output")
	fl.StringVar(&f.remote, "remote", "", "compile through the gRPC server at this address")
	return cmd
}

func (a *app) compileRequest(cmd *cobra.Command, f compileFlags) (compiler.Request, error) {
	var req compiler.Request
	if f.request != "" {
		var (
			b   []byte
			err error
		)
		if f.request == "-" {
			b, err = io.ReadAll(a.stdin)
		} else {
			b, err = os.ReadFile(f.request)
		}
		if err != nil {
			return req, cli.GeneralError("reading request", err)
		}
		if err := yaml.Unmarshal(b, &req); err != nil {
			return req, cli.GeneralError("decoding request", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("populate") {
		req.Populate = f.populate
	}
	if flags.Changed("select") {
		req.SelectableFields = f.selectable
	}
	if flags.Changed("sort") {
		req.Sort = nil
		for _, s := range f.sort {
			req.Sort = append(req.Sort, populate.ParseSort(s))
		}
	}
	req.SelectKey = resolveString(f.selectKey, req.SelectKey)
	req.IncludeKey = resolveString(f.includeKey, req.IncludeKey)
	req.SortKey = resolveString(f.sortKey, req.SortKey)
	req.EmptyRootFieldsBehavior = resolveString(f.emptyRoot, req.EmptyRootFieldsBehavior)
	return req, nil
}

func writeOutput(w io.Writer, v any, format string, pretty bool) error {
	if format == "msgpack" {
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
