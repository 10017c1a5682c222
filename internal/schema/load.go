package schema

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	language "github.com/hanpama/populate/internal/language"
)

// Format names a declaration file syntax.
type Format string

const (
	FormatAuto Format = "auto"
	FormatSDL  Format = "sdl"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts the format names and the empty string (auto).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatSDL, "graphql":
		return FormatSDL, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".graphql", ".graphqls", ".gql":
		return FormatSDL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w for %q", ErrUnknownFormat, path)
}

// LoadOptions controls Load.
type LoadOptions struct {
	Format   Format
	RootType string
}

// Load reads a declaration from a file, or from every SDL file below a
// directory.
func Load(path string, opts LoadOptions) (*Declaration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path, opts.RootType)
	}
	return LoadFile(path, opts)
}

func LoadFile(path string, opts LoadOptions) (*Declaration, error) {
	format := opts.Format
	if format == "" || format == FormatAuto {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to read %q: %w", path, err)
	}
	switch format {
	case FormatSDL:
		return FromSDL(path, string(b), opts.RootType)
	case FormatYAML:
		return ParseYAML(path, b, opts.RootType)
	case FormatJSON:
		return ParseJSON(path, b, opts.RootType)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
}

// LoadDir parses every SDL file below dir, in lexical path order, as one
// document.
func LoadDir(dir, rootType string) (*Declaration, error) {
	var sources []*language.Source
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if f, err := DetectFormat(path); err != nil || f != FormatSDL {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", path, err)
		}
		sources = append(sources, &language.Source{Name: path, Input: string(b)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("schema: failed to walk %q: %w", dir, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("schema: no SDL files found in %q", dir)
	}
	return FromSDLSources(sources, rootType)
}
