// Package language parses GraphQL SDL documents used to author declarations.
package language

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// SyntaxError reports where a document failed to parse.
type SyntaxError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	return ParseSchemas(&ast.Source{Name: name, Input: source})
}

// ParseSchemas parses several sources into one document.
func ParseSchemas(sources ...*Source) (*SchemaDocument, error) {
	doc, err := parser.ParseSchemas(sources...)
	if err != nil {
		return nil, syntaxError(err)
	}
	return doc, nil
}

func syntaxError(err error) error {
	var gqlErr *gqlerror.Error
	if !errors.As(err, &gqlErr) {
		return err
	}
	se := &SyntaxError{Message: gqlErr.Message}
	if len(gqlErr.Locations) > 0 {
		se.Line = gqlErr.Locations[0].Line
		se.Column = gqlErr.Locations[0].Column
	}
	if file, ok := gqlErr.Extensions["file"].(string); ok {
		se.File = file
	}
	return se
}

// StringList reads a list of string or enum values, or a single one.
func StringList(v *Value) ([]string, bool) {
	if v == nil {
		return nil, false
	}
	switch v.Kind {
	case StringValue, BlockValue, EnumValue:
		return []string{v.Raw}, true
	case ListValue:
		out := make([]string, 0, len(v.Children))
		for _, c := range v.Children {
			if c.Value == nil {
				return nil, false
			}
			switch c.Value.Kind {
			case StringValue, BlockValue, EnumValue:
				out = append(out, c.Value.Raw)
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}
