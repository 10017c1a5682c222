package schema

// Declaration describes the selectable shape of one entity type.
//
// Sortable distinguishes nil (defaults to Fields) from an explicit empty
// list (nothing sortable). Relations may point back at an enclosing
// declaration; consumers bound their walk by depth.
type Declaration struct {
	Name      string
	Fields    []string
	Sortable  []string
	Relations []*Relation
}

// Relation is a named edge from one declaration to the related entity.
type Relation struct {
	Name   string
	Schema *Declaration
}

// New returns an empty declaration for the named entity.
func New(name string) *Declaration { return &Declaration{Name: name} }

func (d *Declaration) AddField(names ...string) *Declaration {
	d.Fields = append(d.Fields, names...)
	return d
}

// SetSortable replaces the explicit sortable list. Passing no names
// declares that nothing is sortable.
func (d *Declaration) SetSortable(names ...string) *Declaration {
	d.Sortable = append(make([]string, 0, len(names)), names...)
	return d
}

// AddRelation appends a relation, replacing an existing one with the same name.
func (d *Declaration) AddRelation(name string, related *Declaration) *Declaration {
	for _, r := range d.Relations {
		if r.Name == name {
			r.Schema = related
			return d
		}
	}
	d.Relations = append(d.Relations, &Relation{Name: name, Schema: related})
	return d
}

// SortableFields returns the effective sortable list.
func (d *Declaration) SortableFields() []string {
	if d.Sortable == nil {
		return d.Fields
	}
	return d.Sortable
}

// Relation looks up a relation by name.
func (d *Declaration) Relation(name string) (*Declaration, bool) {
	for _, r := range d.Relations {
		if r.Name == name {
			return r.Schema, true
		}
	}
	return nil, false
}

// HasExplicitSortable reports whether Sortable was declared rather than defaulted.
func (d *Declaration) HasExplicitSortable() bool { return d.Sortable != nil }
