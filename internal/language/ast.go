package language

import "github.com/vektah/gqlparser/v2/ast"

type (
	Source          = ast.Source
	SchemaDocument  = ast.SchemaDocument
	Definition      = ast.Definition
	DefinitionList  = ast.DefinitionList
	FieldDefinition = ast.FieldDefinition
	FieldList       = ast.FieldList
	Directive       = ast.Directive
	DirectiveList   = ast.DirectiveList
	Argument        = ast.Argument
	Value           = ast.Value
	Type            = ast.Type
	Position        = ast.Position
)

type DefinitionKind = ast.DefinitionKind

type ValueKind = ast.ValueKind

const (
	Object      DefinitionKind = ast.Object
	Interface   DefinitionKind = ast.Interface
	Union       DefinitionKind = ast.Union
	Scalar      DefinitionKind = ast.Scalar
	Enum        DefinitionKind = ast.Enum
	InputObject DefinitionKind = ast.InputObject

	StringValue ValueKind = ast.StringValue
	BlockValue  ValueKind = ast.BlockValue
	EnumValue   ValueKind = ast.EnumValue
	ListValue   ValueKind = ast.ListValue
	NullValue   ValueKind = ast.NullValue
)

// BuiltinScalars are the scalar names every schema may use without declaring.
var BuiltinScalars = map[string]bool{
	"String":  true,
	"Int":     true,
	"Float":   true,
	"Boolean": true,
	"ID":      true,
}
