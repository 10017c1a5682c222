package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/hanpama/populate/internal/compiler"
	"github.com/hanpama/populate/internal/index"
	"github.com/hanpama/populate/internal/logging"
	"github.com/hanpama/populate/internal/query"
	"github.com/hanpama/populate/internal/schema"
)

const (
	maxWalkDepth = 25
	envPrefix    = "POPULATE"
)

// Config represents the populate configuration from populate.yaml.
type Config struct {
	Schema SchemaConfig `mapstructure:"schema" json:"schema"`
	Output OutputConfig `mapstructure:"output" json:"output"`
	Server ServerConfig `mapstructure:"server" json:"server"`
	Log    LogConfig    `mapstructure:"log" json:"log"`
	Otel   OtelConfig   `mapstructure:"otel" json:"otel"`
}

// SchemaConfig locates the declaration to compile against.
type SchemaConfig struct {
	Path     string `mapstructure:"path" json:"path"`
	Format   string `mapstructure:"format" json:"format"`
	Root     string `mapstructure:"root" json:"root"`
	MaxDepth int    `mapstructure:"max_depth" json:"max_depth"`
}

// OutputConfig holds the query output defaults.
type OutputConfig struct {
	SelectKey  string `mapstructure:"select_key" json:"select_key"`
	IncludeKey string `mapstructure:"include_key" json:"include_key"`
	SortKey    string `mapstructure:"sort_key" json:"sort_key"`
	EmptyRoot  string `mapstructure:"empty_root" json:"empty_root"`
	Pretty     bool   `mapstructure:"pretty" json:"pretty"`
	Format     string `mapstructure:"format" json:"format"`
}

// ServerConfig holds `populate serve` settings.
type ServerConfig struct {
	HTTPAddr     string   `mapstructure:"http_addr" json:"http_addr"`
	GRPCAddr     string   `mapstructure:"grpc_addr" json:"grpc_addr"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes" json:"max_body_bytes"`
	CORSOrigins  []string `mapstructure:"cors_origins" json:"cors_origins"`
	Watch        bool     `mapstructure:"watch" json:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// OtelConfig enables tracing when Endpoint is set.
type OtelConfig struct {
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	Service  string `mapstructure:"service" json:"service"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, configPath, err
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schema.path", "schema.graphql")
	v.SetDefault("schema.format", string(schema.FormatAuto))
	v.SetDefault("schema.root", "")
	v.SetDefault("schema.max_depth", index.DefaultMaxDepth)

	v.SetDefault("output.select_key", query.DefaultSelectKey)
	v.SetDefault("output.include_key", query.DefaultIncludeKey)
	v.SetDefault("output.sort_key", query.DefaultSortKey)
	v.SetDefault("output.empty_root", string(query.DefaultEmptyRoot))
	v.SetDefault("output.pretty", false)
	v.SetDefault("output.format", "json")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", "")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.watch", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service", "populate")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for populate.yaml or populate.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"populate.yaml", "populate.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := schema.ParseFormat(c.Schema.Format); err != nil {
		return fmt.Errorf("schema.format: %w", err)
	}
	if c.Schema.MaxDepth < 1 {
		return fmt.Errorf("schema.max_depth must be at least 1, got %d", c.Schema.MaxDepth)
	}
	if _, ok := query.ParseEmptyRoot(c.Output.EmptyRoot); !ok {
		return fmt.Errorf("output.empty_root: unknown policy %q", c.Output.EmptyRoot)
	}
	switch c.Output.Format {
	case "json", "msgpack":
	default:
		return fmt.Errorf("output.format: unknown format %q", c.Output.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// CompilerOptions translates the config into compiler options.
func (c *Config) CompilerOptions() []compiler.Option {
	emptyRoot, _ := query.ParseEmptyRoot(c.Output.EmptyRoot)
	return []compiler.Option{
		compiler.WithMaxDepth(c.Schema.MaxDepth),
		compiler.WithKeys(query.Keys{
			Select:  c.Output.SelectKey,
			Include: c.Output.IncludeKey,
			Sort:    c.Output.SortKey,
		}),
		compiler.WithEmptyRoot(emptyRoot),
	}
}

// LoadSchema reads the configured declaration.
func (c *Config) LoadSchema() (*schema.Declaration, error) {
	format, err := schema.ParseFormat(c.Schema.Format)
	if err != nil {
		return nil, err
	}
	return schema.Load(c.Schema.Path, schema.LoadOptions{Format: format, RootType: c.Schema.Root})
}

// LoadCompiler reads the configured declaration and builds its compiler.
func (c *Config) LoadCompiler() (*compiler.Compiler, error) {
	decl, err := c.LoadSchema()
	if err != nil {
		return nil, err
	}
	return compiler.New(decl, c.CompilerOptions()...), nil
}
