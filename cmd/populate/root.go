package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hanpama/populate/internal/cli"
	"github.com/hanpama/populate/internal/compiler"
	"github.com/hanpama/populate/internal/eventbus"
	"github.com/hanpama/populate/internal/logging"
)

// app is the state shared by the commands of one invocation.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	// Set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     *slog.Logger

	// Persistent flags
	cfgFile      string
	schemaPath   string
	schemaFormat string
	rootType     string
	maxDepth     int
	logLevel     string
}

// Command group IDs
const (
	groupQuery   = "query"
	groupSchema  = "schema"
	groupUtility = "utility"
)

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "populate",
		Short: "Compile populate paths into query descriptors",
		Long: `populate - populate path compiler

populate turns dotted relation paths such as "posts.comments" into the
nested select/include/orderBy descriptor a query layer consumes. Paths are
validated against a schema declaration; unknown paths are dropped.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "completion", "version":
				return nil
			}
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: auto-discover populate.yaml)")
	pf.StringVarP(&a.schemaPath, "schema", "s", "", "schema file or SDL directory")
	pf.StringVar(&a.schemaFormat, "schema-format", "", "schema format: auto, sdl, yaml, json")
	pf.StringVar(&a.rootType, "root", "", "root type name (default: first object type)")
	pf.IntVar(&a.maxDepth, "max-depth", 0, "maximum relation path depth")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupQuery, Title: "Query:"},
		&cobra.Group{ID: groupSchema, Title: "Schema:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	for _, c := range []*cobra.Command{a.compileCmd(), a.serveCmd()} {
		c.GroupID = groupQuery
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{a.indexCmd(), a.schemaCmd(), a.protoCmd()} {
		c.GroupID = groupSchema
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{a.configCmd(), versionCmd()} {
		c.GroupID = groupUtility
		rootCmd.AddCommand(c)
	}
	return rootCmd
}

// setup loads the configuration, applies flag overrides and installs
// logging on a fresh event bus.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, configPath, err := cli.LoadConfig(a.cfgFile)
	if err != nil {
		return cli.ConfigError("loading configuration", err)
	}
	flags := cmd.Flags()
	if flags.Changed("schema") {
		cfg.Schema.Path = a.schemaPath
	}
	if flags.Changed("schema-format") {
		cfg.Schema.Format = a.schemaFormat
	}
	if flags.Changed("root") {
		cfg.Schema.Root = a.rootType
	}
	if flags.Changed("max-depth") {
		cfg.Schema.MaxDepth = a.maxDepth
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cli.ConfigError("invalid configuration", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, a.stderr)
	if err != nil {
		return cli.ConfigError("configuring logging", err)
	}
	eventbus.Use(eventbus.New())
	logging.Subscribe(logger)

	a.cfg, a.configPath, a.logger = cfg, configPath, logger
	return nil
}

// loadCompiler reads the configured schema.
func (a *app) loadCompiler() (*compiler.Compiler, error) {
	c, err := a.cfg.LoadCompiler()
	if err != nil {
		return nil, cli.SchemaParseError("loading schema "+a.cfg.Schema.Path, err)
	}
	return c, nil
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
