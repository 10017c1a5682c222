package schema

import (
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// ParseYAML reads a declaration document. Mapping order is kept.
//
//	name: User
//	fields: [id, name, email]
//	sortable: [name]          # omit to default to fields, [] for none
//	relations:
//	  posts: Post             # reference into types
//	  profile:                # inline declaration
//	    fields: [id, bio]
//	types:
//	  Post:
//	    fields: [id, title]
//	    relations:
//	      comments: {$ref: Comment}
//	  Comment:
//	    fields: [id, text]
//	    relations:
//	      replies: {$ref: Comment}
//
// A top-level "root: Post" entry, or a non-empty rootType, selects a
// declaration from types as the root.
func ParseYAML(name string, b []byte, rootType string) (*Declaration, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("schema: %s: %w", name, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("schema: %s: empty document", name)
	}
	p := &yamlParser{types: make(map[string]*Declaration)}
	p.vs.file = name
	root := p.document(doc.Content[0], rootType)
	if err := p.vs.err(); err != nil {
		return nil, err
	}
	return root, nil
}

// ParseJSON reads the JSON form of a ParseYAML document.
func ParseJSON(name string, b []byte, rootType string) (*Declaration, error) {
	return ParseYAML(name, b, rootType)
}

type yamlParser struct {
	types map[string]*Declaration
	vs    violations
}

func (p *yamlParser) errorf(n *yaml.Node, format string, args ...any) {
	p.vs.add(n.Line, n.Column, format, args...)
}

func (p *yamlParser) document(top *yaml.Node, rootType string) *Declaration {
	if top.Kind != yaml.MappingNode {
		p.errorf(top, "Document must be a mapping")
		return nil
	}

	if types := lookup(top, "types"); types != nil {
		p.declareTypes(types)
	}

	if rootType == "" {
		if ref := lookup(top, "root"); ref != nil {
			if ref.Kind != yaml.ScalarNode {
				p.errorf(ref, "root must name a type")
				return nil
			}
			rootType = ref.Value
		}
	}
	if rootType != "" {
		decl, ok := p.types[rootType]
		if !ok {
			p.errorf(top, "Root type %q not found in types", rootType)
			return nil
		}
		return decl
	}

	root := New("")
	p.fill(root, top, true)
	return root
}

func (p *yamlParser) declareTypes(types *yaml.Node) {
	if types.Kind != yaml.MappingNode {
		p.errorf(types, "types must be a mapping")
		return
	}
	for i := 0; i+1 < len(types.Content); i += 2 {
		name := types.Content[i].Value
		if _, ok := p.types[name]; ok {
			p.errorf(types.Content[i], "Duplicate type %q", name)
			continue
		}
		p.types[name] = New(name)
	}
	for i := 0; i+1 < len(types.Content); i += 2 {
		p.fill(p.types[types.Content[i].Value], types.Content[i+1], false)
	}
}

func (p *yamlParser) fill(decl *Declaration, n *yaml.Node, top bool) {
	if n.Kind != yaml.MappingNode {
		p.errorf(n, "Declaration must be a mapping")
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "name":
			if value.Kind != yaml.ScalarNode {
				p.errorf(value, "name must be a string")
				continue
			}
			decl.Name = value.Value
		case "fields":
			decl.AddField(p.strings(value)...)
		case "sortable":
			if isNull(value) {
				continue
			}
			decl.SetSortable(p.strings(value)...)
		case "relations":
			p.relations(decl, value)
		case "types", "root":
			if !top {
				p.errorf(key, "%s is only allowed at the top level", key.Value)
			}
		default:
			p.errorf(key, "Unknown key %q", key.Value)
		}
	}
	for _, f := range decl.Sortable {
		if !slices.Contains(decl.Fields, f) {
			p.errorf(n, "Sortable field %q is not a selectable field", f)
		}
	}
}

func (p *yamlParser) relations(decl *Declaration, n *yaml.Node) {
	if isNull(n) {
		return
	}
	if n.Kind != yaml.MappingNode {
		p.errorf(n, "relations must be a mapping")
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, value := n.Content[i].Value, n.Content[i+1]
		if related := p.relation(name, value); related != nil {
			decl.AddRelation(name, related)
		}
	}
}

func (p *yamlParser) relation(name string, n *yaml.Node) *Declaration {
	if n.Kind == yaml.ScalarNode && !isNull(n) {
		return p.ref(n)
	}
	if n.Kind == yaml.MappingNode {
		if ref := lookup(n, "$ref"); ref != nil {
			if len(n.Content) != 2 {
				p.errorf(n, "$ref must be the only key of relation %q", name)
			}
			return p.ref(ref)
		}
	}
	inline := New("")
	p.fill(inline, n, false)
	return inline
}

func (p *yamlParser) ref(n *yaml.Node) *Declaration {
	decl, ok := p.types[n.Value]
	if !ok {
		p.errorf(n, "Unknown type %q", n.Value)
		return nil
	}
	return decl
}

// strings reads a scalar or a sequence of scalars.
func (p *yamlParser) strings(n *yaml.Node) []string {
	switch {
	case isNull(n):
		return nil
	case n.Kind == yaml.ScalarNode:
		return []string{n.Value}
	case n.Kind == yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				p.errorf(c, "Expected a field name")
				continue
			}
			out = append(out, c.Value)
		}
		return out
	}
	p.errorf(n, "Expected a field name or a list of field names")
	return nil
}

func lookup(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// IsLoadError reports whether err carries violations.
func IsLoadError(err error) bool {
	var le LoadError
	return errors.As(err, &le)
}
