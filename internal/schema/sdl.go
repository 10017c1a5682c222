package schema

import (
	"slices"
	"strings"

	language "github.com/hanpama/populate/internal/language"
)

// Directives recognized in SDL documents.
const (
	// DirectiveSortable on a type lists its sortable fields:
	// type Post @sortable(fields: ["createdAt"]) { ... }
	DirectiveSortable = "sortable"
	// DirectiveHidden on a field keeps it out of the declaration.
	DirectiveHidden = "hidden"
)

// FromSDL builds the declaration rooted at rootType from a GraphQL SDL
// document. Scalar and enum fields are selectable; fields whose type is an
// object or interface become relations. Lists and non-null wrappers are
// ignored. An empty rootType selects the first object type of the document.
func FromSDL(name, source, rootType string) (*Declaration, error) {
	doc, err := language.ParseSchema(name, source)
	if err != nil {
		return nil, err
	}
	return fromDocument(doc, rootType)
}

// FromSDLSources is FromSDL over several files sharing one type namespace.
func FromSDLSources(sources []*language.Source, rootType string) (*Declaration, error) {
	doc, err := language.ParseSchemas(sources...)
	if err != nil {
		return nil, err
	}
	return fromDocument(doc, rootType)
}

type sdlType struct {
	def        *language.Definition
	fields     language.FieldList
	directives language.DirectiveList
	decl       *Declaration
}

type sdlBuilder struct {
	types map[string]*sdlType
	order []string
	vs    violations
}

func fromDocument(doc *language.SchemaDocument, rootType string) (*Declaration, error) {
	b := &sdlBuilder{types: make(map[string]*sdlType)}
	b.collect(doc)
	b.build()
	root := b.root(rootType)
	if err := b.vs.err(); err != nil {
		return nil, err
	}
	return root, nil
}

func (b *sdlBuilder) addAt(pos *language.Position, format string, args ...any) {
	line, column, file := 0, 0, ""
	if pos != nil {
		line, column = pos.Line, pos.Column
		if pos.Src != nil {
			file = pos.Src.Name
		}
	}
	b.vs.file = file
	b.vs.add(line, column, format, args...)
}

func (b *sdlBuilder) collect(doc *language.SchemaDocument) {
	for _, def := range doc.Definitions {
		if _, ok := b.types[def.Name]; ok {
			b.addAt(def.Position, "Duplicate type %q", def.Name)
			continue
		}
		t := &sdlType{def: def}
		t.fields = append(t.fields, def.Fields...)
		t.directives = append(t.directives, def.Directives...)
		if def.Kind == language.Object || def.Kind == language.Interface {
			t.decl = New(def.Name)
		}
		b.types[def.Name] = t
		b.order = append(b.order, def.Name)
	}
	for _, ext := range doc.Extensions {
		t, ok := b.types[ext.Name]
		if !ok {
			b.addAt(ext.Position, "Cannot extend unknown type %q", ext.Name)
			continue
		}
		t.fields = append(t.fields, ext.Fields...)
		t.directives = append(t.directives, ext.Directives...)
	}
}

func (b *sdlBuilder) build() {
	for _, name := range b.order {
		t := b.types[name]
		if t.decl == nil {
			continue
		}
		for _, f := range t.fields {
			b.addField(t, f)
		}
		b.applySortable(t)
	}
}

func (b *sdlBuilder) addField(t *sdlType, f *language.FieldDefinition) {
	if strings.HasPrefix(f.Name, "__") {
		return
	}
	if f.Directives.ForName(DirectiveHidden) != nil {
		return
	}
	typeName := f.Type.Name()
	if language.BuiltinScalars[typeName] {
		t.decl.AddField(f.Name)
		return
	}
	target, ok := b.types[typeName]
	if !ok {
		b.addAt(f.Position, "Unknown type %q for field %s.%s", typeName, t.def.Name, f.Name)
		return
	}
	switch target.def.Kind {
	case language.Scalar, language.Enum:
		t.decl.AddField(f.Name)
	case language.Object, language.Interface:
		t.decl.AddRelation(f.Name, target.decl)
	default:
		b.addAt(f.Position, "Field %s.%s has unsupported %s type %q", t.def.Name, f.Name, strings.ToLower(string(target.def.Kind)), typeName)
	}
}

func (b *sdlBuilder) applySortable(t *sdlType) {
	d := t.directives.ForName(DirectiveSortable)
	if d == nil {
		return
	}
	arg := d.Arguments.ForName("fields")
	if arg == nil {
		b.addAt(d.Position, "Missing argument 'fields' in @%s directive on type %s", DirectiveSortable, t.def.Name)
		return
	}
	fields, ok := language.StringList(arg.Value)
	if !ok {
		b.addAt(arg.Position, "Argument 'fields' of @%s must be a list of strings", DirectiveSortable)
		return
	}
	for _, f := range fields {
		if !slices.Contains(t.decl.Fields, f) {
			b.addAt(arg.Position, "Sortable field %q is not a selectable field of %s", f, t.def.Name)
		}
	}
	t.decl.SetSortable(fields...)
}

func (b *sdlBuilder) root(rootType string) *Declaration {
	if rootType == "" {
		for _, name := range b.order {
			if t := b.types[name]; t.def.Kind == language.Object {
				return t.decl
			}
		}
		b.addAt(nil, "No object type found")
		return nil
	}
	t, ok := b.types[rootType]
	if !ok {
		b.addAt(nil, "Root type %q not found", rootType)
		return nil
	}
	if t.decl == nil {
		b.addAt(t.def.Position, "Root type %q must be an object type", rootType)
		return nil
	}
	return t.decl
}
