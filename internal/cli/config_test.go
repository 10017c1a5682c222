package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/populate/internal/query"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
}

func TestFindConfigFile_ExplicitPath(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("schema:\n  path: a.graphql\n"), 0o644))

	path, err := findConfigFile(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, tmpFile, path)
}

func TestFindConfigFile_ExplicitPathNotFound(t *testing.T) {
	_, err := findConfigFile("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestFindConfigFile_AutoDiscovery(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	configPath := filepath.Join(root, "populate.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: debug\n"), 0o644))

	nested := filepath.Join(root, "deep", "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdir(t, nested)

	path, err := findConfigFile("")
	require.NoError(t, err)

	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedPath, _ := filepath.EvalSymlinks(configPath)
	actualPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, expectedPath, actualPath)
}

func TestFindConfigFile_StopsAtGitRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "populate.yaml"), []byte("{}"), 0o644))
	project := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(project, ".git"), 0o755))
	chdir(t, project)

	path, err := findConfigFile("")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestLoadConfig_Defaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	chdir(t, root)

	cfg, path, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "schema.graphql", cfg.Schema.Path)
	assert.Equal(t, 6, cfg.Schema.MaxDepth)
	assert.Equal(t, query.DefaultIncludeKey, cfg.Output.IncludeKey)
	assert.Equal(t, string(query.ReturnAll), cfg.Output.EmptyRoot)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "populate.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
schema:
  path: blog.yaml
  root: User
output:
  include_key: with
  empty_root: leaveEmpty
server:
  cors_origins: ["http://a.test"]
`), 0o644))
	t.Setenv("POPULATE_SCHEMA_MAX_DEPTH", "3")
	t.Setenv("POPULATE_LOG_LEVEL", "debug")

	cfg, path, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, path)
	assert.Equal(t, "blog.yaml", cfg.Schema.Path)
	assert.Equal(t, "User", cfg.Schema.Root)
	assert.Equal(t, 3, cfg.Schema.MaxDepth)
	assert.Equal(t, "with", cfg.Output.IncludeKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"http://a.test"}, cfg.Server.CORSOrigins)

	opts := cfg.CompilerOptions()
	assert.Len(t, opts, 3)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "populate.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("output:\n  empty_root: everything\n"), 0o644))

	_, _, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.empty_root")
}

func TestLoadCompiler(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.graphql")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`
type User { id: ID name: String profile: Profile }
type Profile { id: ID bio: String }
`), 0o644))

	cfg := &Config{
		Schema: SchemaConfig{Path: schemaPath, Format: "auto", MaxDepth: 6},
		Output: OutputConfig{IncludeKey: "with", EmptyRoot: "leaveEmpty", Format: "json"},
	}
	c, err := cfg.LoadCompiler()
	require.NoError(t, err)
	assert.Equal(t, "User", c.Name())
	assert.Equal(t, "with", c.Options().Keys.Include)
	assert.Equal(t, query.DefaultSelectKey, c.Options().Keys.Select)
	assert.Equal(t, query.LeaveEmpty, c.Options().EmptyRoot)

	cfg.Schema.Path = filepath.Join(dir, "missing.graphql")
	_, err = cfg.LoadCompiler()
	require.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitGeneral, ExitCode(errors.New("x")))
	assert.Equal(t, ExitConfig, ExitCode(ConfigError("loading configuration", errors.New("bad"))))

	err := SchemaParseError("parsing schema", os.ErrNotExist)
	assert.Equal(t, ExitSchemaParse, ExitCode(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "parsing schema: file does not exist", err.Error())
}
